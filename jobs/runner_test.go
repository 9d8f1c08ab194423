package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/engine"
	"trimborder/engine/batch"
	"trimborder/engine/geometry"
	"trimborder/engine/stretch"
	"trimborder/pdfdoc"
	"trimborder/pdfdoc/pdftest"
	"trimborder/store"
	"trimborder/types"
)

func TestRecords(t *testing.T) {
	id := uuid.New()
	res := &engine.BatchResult{Pages: []batch.Result[*engine.RenderedPage]{
		{ID: 1, State: batch.Done, Value: &engine.RenderedPage{ID: 1, Warnings: []stretch.Warning{
			{Code: stretch.WarnNoBoundaryContent, Edge: geometry.Top},
		}}},
		{ID: 2, State: batch.Failed, Err: errors.New("unreadable content")},
	}}

	recs := Records(id, res)
	require.Len(t, recs, 2)
	assert.Equal(t, types.PageRecord{JobID: id, PageID: 1, State: "done", Warnings: []string{
		stretch.Warning{Code: stretch.WarnNoBoundaryContent, Edge: geometry.Top}.String(),
	}}, recs[0])
	assert.Equal(t, 2, recs[1].PageID)
	assert.Equal(t, "failed", recs[1].State)
	assert.Equal(t, "unreadable content", recs[1].Reason)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		failed int
		err    error
		want   types.JobStatus
	}{
		{"done", 0, nil, types.JobDone},
		{"partial", 1, nil, types.JobPartial},
		{"failed", 0, errors.New("boom"), types.JobFailed},
		{"cancelled", 1, context.Canceled, types.JobCancelled},
		{"timed out", 0, context.DeadlineExceeded, types.JobCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status(&types.Job{PagesFailed: tt.failed}, tt.err))
		})
	}
}

func TestFileMissingInputRecordsFailedJob(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRunner(st)
	dir := t.TempDir()

	job, err := r.File(context.Background(), filepath.Join(dir, "missing.pdf"), filepath.Join(dir, "out.pdf"),
		types.DefaultBorderSpec(), OriginCLI)
	require.Error(t, err)
	require.NotNil(t, job)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Empty(t, job.OutputPath)
	assert.False(t, job.FinishedAt.IsZero())

	saved, err := st.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, saved.Status)
	assert.Equal(t, OriginCLI, saved.Source)
	assert.NoFileExists(t, filepath.Join(dir, "out.pdf"))
}

func TestStreamWithoutStore(t *testing.T) {
	r := NewRunner(nil)
	var out bytes.Buffer
	job, err := r.Stream(context.Background(), strings.NewReader("garbage"), &out, "upload.pdf",
		types.DefaultBorderSpec(), OriginAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read upload.pdf")
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Zero(t, out.Len())
}

func mixedDocument() []byte {
	good := fmt.Sprintf("0 0 1 rg 0 0 %.4f %.4f re f", geometry.MM(210), geometry.MM(297))
	return pdftest.Build(pdftest.A4(good), pdftest.A4("0 0 m (never closed"), pdftest.A4(good))
}

func TestStreamFailurePolicy(t *testing.T) {
	t.Run("abort on first failure", func(t *testing.T) {
		spec := types.DefaultBorderSpec()
		spec.BatchFailure = types.AbortOnFirstFailure
		var out bytes.Buffer
		job, err := NewRunner(nil).Stream(context.Background(), bytes.NewReader(mixedDocument()), &out,
			"mixed.pdf", spec, OriginAPI)

		require.Error(t, err)
		var berr *batch.Error
		assert.ErrorAs(t, err, &berr)
		assert.Equal(t, types.JobFailed, job.Status)
		assert.Equal(t, 3, job.PagesTotal)
		assert.Positive(t, job.PagesFailed)
		assert.Zero(t, out.Len(), "nothing is written")
	})

	t.Run("continue and collect", func(t *testing.T) {
		spec := types.DefaultBorderSpec()
		var out bytes.Buffer
		job, err := NewRunner(nil).Stream(context.Background(), bytes.NewReader(mixedDocument()), &out,
			"mixed.pdf", spec, OriginAPI)

		require.NoError(t, err)
		assert.Equal(t, types.JobPartial, job.Status)
		assert.Equal(t, 2, job.PagesDone)
		assert.Equal(t, 1, job.PagesFailed)

		src, err := pdfdoc.Read(bytes.NewReader(out.Bytes()))
		require.NoError(t, err)
		assert.Len(t, src.Document().Pages, 2)
	})
}
