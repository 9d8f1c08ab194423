package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trimborder/engine"
	"trimborder/engine/batch"
	"trimborder/pdfdoc"
	"trimborder/store"
	"trimborder/types"
)

const (
	OriginHotFolder = "hotfolder"
	OriginAPI       = "api"
	OriginCLI       = "cli"
)

// Runner takes a document through transform, commit and save, and records
// the outcome as a job.
type Runner struct {
	engine *engine.Engine
	store  store.DBStorer
	logger *slog.Logger
}

// NewRunner records jobs in st. A nil st disables recording.
func NewRunner(st store.DBStorer) *Runner {
	return &Runner{
		engine: engine.New(),
		store:  st,
		logger: slog.Default(),
	}
}

func (r *Runner) Engine() *engine.Engine { return r.engine }

// File processes the PDF at in and writes the result to out. The returned
// job is set whenever the document could be read, also when saving failed.
func (r *Runner) File(ctx context.Context, in, out string, spec types.BorderSpec, origin string) (*types.Job, error) {
	job := newJob(origin, in, out, spec)
	src, err := pdfdoc.Open(in)
	if err != nil {
		return r.finish(ctx, job, nil, fmt.Errorf("open %s: %w", in, err))
	}
	res, err := r.transform(ctx, src, spec, job)
	if err != nil {
		return r.finish(ctx, job, res, err)
	}
	return r.finish(ctx, job, res, src.SaveFile(out, spec.SkipFailedPages))
}

// Stream is File for in-memory documents.
func (r *Runner) Stream(ctx context.Context, rs io.ReadSeeker, w io.Writer, name string, spec types.BorderSpec, origin string) (*types.Job, error) {
	job := newJob(origin, name, "", spec)
	src, err := pdfdoc.Read(rs)
	if err != nil {
		return r.finish(ctx, job, nil, fmt.Errorf("read %s: %w", name, err))
	}
	res, err := r.transform(ctx, src, spec, job)
	if err != nil {
		return r.finish(ctx, job, res, err)
	}
	return r.finish(ctx, job, res, src.Save(w, spec.SkipFailedPages))
}

// transform runs the engine and commits the result into the source
// document. Under continue-and-collect page failures are not an error
// here; they decide the job status and whether saving is refused. Under
// abort-on-first-failure the first failure fails the job and nothing is
// written.
func (r *Runner) transform(ctx context.Context, src *pdfdoc.Source, spec types.BorderSpec, job *types.Job) (*engine.BatchResult, error) {
	doc := src.Document()
	job.PagesTotal = len(doc.Pages)
	r.save(ctx, job)

	res, err := r.engine.ComputeTransform(ctx, doc, spec)
	var berr *batch.Error
	if err != nil && !errors.As(err, &berr) {
		return nil, err
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if berr != nil && spec.BatchFailure == types.AbortOnFirstFailure {
		return res, berr
	}
	doc.Commit(res)
	if spec.ProcessingInfo {
		src.SetInfo(pdfdoc.ProcessingInfo(spec.Width, time.Now()))
	}
	return res, nil
}

func newJob(origin, in, out string, spec types.BorderSpec) *types.Job {
	return &types.Job{
		ID:         uuid.New(),
		Source:     origin,
		SourcePath: in,
		OutputPath: out,
		Status:     types.JobRunning,
		Spec:       spec,
		CreatedAt:  time.Now(),
	}
}

func (r *Runner) finish(ctx context.Context, job *types.Job, res *engine.BatchResult, err error) (*types.Job, error) {
	job.FinishedAt = time.Now()
	if res != nil {
		job.Pages = Records(job.ID, res)
		job.PagesDone = len(res.Done())
		job.PagesFailed = len(res.Failed())
		job.Warnings = res.Warnings()
	}
	job.Status = status(job, err)
	if err != nil {
		job.OutputPath = ""
	}
	r.save(ctx, job)

	log := r.logger.With("job", job.ID, "source", job.SourcePath)
	if err != nil {
		log.Error("job failed", "status", job.Status, "err", err)
		return job, err
	}
	log.Info("job finished", "status", job.Status, "output", job.OutputPath,
		"done", job.PagesDone, "failed", job.PagesFailed)
	return job, nil
}

func status(job *types.Job, err error) types.JobStatus {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.JobCancelled
	case err != nil:
		return types.JobFailed
	case job.PagesFailed > 0:
		return types.JobPartial
	}
	return types.JobDone
}

// save records the job without failing it; the document result matters
// more than its bookkeeping.
func (r *Runner) save(ctx context.Context, job *types.Job) {
	if r.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.store.SaveJob(ctx, *job); err != nil {
		r.logger.Warn("save job", "job", job.ID, "err", err)
		return
	}
	if len(job.Pages) == 0 {
		return
	}
	if err := r.store.SavePageResults(ctx, job.ID, job.Pages); err != nil {
		r.logger.Warn("save page results", "job", job.ID, "err", err)
	}
}

// Records converts a batch result into page records ordered by page.
func Records(jobID uuid.UUID, res *engine.BatchResult) []types.PageRecord {
	recs := make([]types.PageRecord, 0, len(res.Pages))
	for _, p := range res.Pages {
		rec := types.PageRecord{JobID: jobID, PageID: p.ID, State: p.State.String()}
		if p.Err != nil {
			rec.Reason = p.Err.Error()
		}
		if p.Value != nil {
			for _, w := range p.Value.Warnings {
				rec.Warnings = append(rec.Warnings, w.String())
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
