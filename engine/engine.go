package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trimborder/engine/batch"
	"trimborder/engine/marks"
	"trimborder/engine/planner"
	"trimborder/engine/rebuild"
	"trimborder/engine/stretch"
	"trimborder/types"
)

var ErrNoPages = errors.New("document has no pages")

type Engine struct {
	logger  *slog.Logger
	tracker *batch.Tracker
}

func New() *Engine {
	return &Engine{
		logger: slog.Default(),
	}
}

// WithLogger replaces the logger used for stage and failure logging.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	e.logger = l
	return e
}

// WithTracker publishes page states of ComputeTransform runs to t.
func (e *Engine) WithTracker(t *batch.Tracker) *Engine {
	e.tracker = t
	return e
}

// ComputeTransform runs the border pipeline over every page of doc. The
// document itself is left untouched; use Document.Commit to apply the
// result. The result is returned even when pages failed, together with a
// *batch.Error describing them.
func (e *Engine) ComputeTransform(ctx context.Context, doc *Document, spec types.BorderSpec) (*BatchResult, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, types.NewValidationError(errs)
	}
	if doc == nil || len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}
	pages := make(map[int]*Page, len(doc.Pages))
	ids := make([]int, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if _, dup := pages[p.ID]; dup {
			return nil, fmt.Errorf("duplicate page id %d", p.ID)
		}
		pages[p.ID] = p
		ids = append(ids, p.ID)
	}

	opts := batch.Options{
		Workers: spec.Workers,
		Abort:   spec.BatchFailure == types.AbortOnFirstFailure,
		Tracker: e.tracker,
		Logger:  e.logger,
		OnState: func(id int, s batch.State) {
			e.logger.Debug("page state", "page", id, "state", s)
		},
	}
	results, err := batch.Run(ctx, ids, opts, func(ctx context.Context, id int, step batch.Step) (*RenderedPage, error) {
		return e.transform(pages[id], spec, step)
	})
	res := &BatchResult{Pages: results}
	e.logger.Info("transform finished",
		"pages", len(ids),
		"done", len(res.Done()),
		"failed", len(res.Failed()),
		"warnings", res.Warnings(),
	)
	return res, err
}

// PreviewTransform rebuilds a single page without touching it. A cancelled
// ctx stops the pipeline at the next stage boundary.
func (e *Engine) PreviewTransform(ctx context.Context, page *Page, spec types.BorderSpec) (*RenderedPage, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, types.NewValidationError(errs)
	}
	if page == nil {
		return nil, errors.New("preview: no page")
	}
	step := func(batch.State) error { return ctx.Err() }
	if err := step(batch.Detecting); err != nil {
		return nil, err
	}
	return e.transform(page, spec, step)
}

func (e *Engine) transform(p *Page, spec types.BorderSpec, step batch.Step) (*RenderedPage, error) {
	log := e.logger.With("page", p.ID)
	if p.LoadErr != nil {
		return nil, &marks.DetectError{Err: p.LoadErr}
	}
	boxes := p.Boxes.Normalize()

	log.Debug("detecting marks", "trim", boxes.Trim)
	set, prims, err := marks.DetectPage(p.Content, p.Images, boxes.Trim, spec.Detect)
	if err != nil {
		return nil, err
	}

	if err := step(batch.Planning); err != nil {
		return nil, err
	}
	log.Debug("planning", "marks", set.Count(), "confident", set.Confident)
	plan, err := planner.Plan(p.Boxes, set, spec)
	if err != nil {
		return nil, err
	}

	if err := step(batch.Stretching); err != nil {
		return nil, err
	}
	log.Debug("stretching", "mode", spec.StretchMode, "primitives", len(prims))
	sp, err := stretch.Stretch(prims, plan.Old.Trim, plan.New.Trim, set, spec)
	if err != nil {
		return nil, err
	}
	for _, w := range sp.Warnings {
		log.Warn("stretch degraded", "warning", w.String())
	}

	if err := step(batch.Rebuilding); err != nil {
		return nil, err
	}
	out, err := rebuild.Rebuild(rebuild.Input{
		Content:   p.Content,
		Prims:     prims,
		Marks:     set,
		Plan:      plan,
		Stretch:   sp,
		Precision: spec.Precision,
	})
	if err != nil {
		return nil, err
	}
	if err := step(batch.Done); err != nil {
		return nil, err
	}
	log.Debug("rebuilt", "edits", out.Edits, "bytes", len(out.Content))

	return &RenderedPage{
		ID:       p.ID,
		Boxes:    out.Boxes,
		Content:  out.Content,
		Marks:    set,
		Plan:     plan,
		Warnings: out.Warnings,
		Edits:    out.Edits,
	}, nil
}
