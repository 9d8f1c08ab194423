package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/engine/geometry"
	"trimborder/store"
	"trimborder/types"
)

func newApp(t *testing.T) (*fiber.App, *store.MemoryStore, string) {
	t.Helper()
	st := store.NewMemoryStore()
	dir := t.TempDir()
	return New(st, dir, types.DefaultBorderSpec()), st, dir
}

func multipartBody(t *testing.T, fields map[string]string, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if name != "" {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthy(t *testing.T) {
	app, _, _ := newApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["result"])
	assert.Equal(t, "memory", body["store"])
}

func TestGetJob(t *testing.T) {
	app, st, _ := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	job := types.Job{ID: uuid.New(), Source: "api", Status: types.JobPartial, PagesTotal: 2, PagesDone: 1, PagesFailed: 1, CreatedAt: time.Now()}
	require.NoError(t, st.SaveJob(context.Background(), job))
	require.NoError(t, st.SavePageResults(context.Background(), job.ID, []types.PageRecord{
		{JobID: job.ID, PageID: 2, State: "failed", Reason: "unreadable"},
		{JobID: job.ID, PageID: 1, State: "done"},
	}))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[types.Job](t, resp)
	assert.Equal(t, types.JobPartial, got.Status)
	require.Len(t, got.Pages, 2)
	assert.Equal(t, 1, got.Pages[0].PageID)
	assert.Equal(t, "unreadable", got.Pages[1].Reason)
}

func TestConfig(t *testing.T) {
	app, _, _ := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultBorderSpec(), decode[types.BorderSpec](t, resp))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(`{"width_mm": 5, "stretch_mode": "mirror"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	spec := decode[types.BorderSpec](t, resp)
	assert.InDelta(t, geometry.MM(5), spec.Width, 1e-9)
	assert.Equal(t, types.StretchMode("mirror"), spec.StretchMode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.NoError(t, err)
	assert.Equal(t, types.StretchMode("mirror"), decode[types.BorderSpec](t, resp).StretchMode)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(`{"stretch_mode": "smear"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	verr := decode[types.ValidationError](t, resp)
	assert.Contains(t, verr.Errors, "StretchMode")
}

func TestUpload(t *testing.T) {
	app, _, dir := newApp(t)

	body, ctype := multipartBody(t, nil, "flyer.pdf", []byte("%PDF-1.7"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	data, err := os.ReadFile(filepath.Join(dir, "flyer.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	body, ctype = multipartBody(t, nil, "notes.txt", []byte("hi"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestTransformErrors(t *testing.T) {
	app, _, _ := newApp(t)

	body, ctype := multipartBody(t, map[string]string{"width_mm": "3"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transform", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, ctype = multipartBody(t, map[string]string{"stretch_mode": "smear"}, "a.pdf", []byte("%PDF"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/transform", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body, ctype = multipartBody(t, nil, "a.pdf", []byte("not a pdf"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/transform", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Job-ID"))
	msg, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(msg), "read a.pdf")
}

func TestPreviewErrors(t *testing.T) {
	app, _, _ := newApp(t)

	body, ctype := multipartBody(t, map[string]string{"page": "0"}, "a.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/preview", body)
	req.Header.Set(fiber.HeaderContentType, ctype)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
