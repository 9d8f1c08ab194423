package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/logging"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestLogger(logging.New(&buf, "info", "text"), "/api/"))
	app.Get("/api/ok", func(c *fiber.Ctx) error {
		c.Set("X-Job-ID", "42")
		return c.SendString("ok")
	})
	app.Get("/api/missing", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "nope")
	})
	app.Get("/check", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), "path=/api/ok status=200")
	assert.Contains(t, buf.String(), "job=42")

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, buf.String(), "status=404")

	buf.Reset()
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/check", nil))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
