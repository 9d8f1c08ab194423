package engine

import (
	"trimborder/engine/batch"
	"trimborder/engine/content"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/engine/planner"
	"trimborder/engine/stretch"
)

// Page is one page of a Document. ID is the 1-based page number.
// LoadErr is set by the document adapter when the page content could not
// be extracted; such a page fails detection.
type Page struct {
	ID      int
	Boxes   geometry.Boxes
	Content []byte
	Images  map[string]content.ImageInfo
	LoadErr error

	// Set by Commit.
	Rebuilt  bool
	Err      error
	Warnings []stretch.Warning
}

// Document owns its pages for one processing run.
type Document struct {
	Pages []*Page
}

func (d *Document) Page(id int) *Page {
	for _, p := range d.Pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RenderedPage is the rebuilt state of a page, built off to the side of
// the source page.
type RenderedPage struct {
	ID       int                    `json:"page"`
	Boxes    geometry.Boxes         `json:"boxes"`
	Content  []byte                 `json:"-"`
	Marks    marks.Set              `json:"marks"`
	Plan     *planner.ExpansionPlan `json:"plan"`
	Warnings []stretch.Warning      `json:"warnings,omitempty"`
	Edits    int                    `json:"edits"`
}

// BatchResult maps every page id to its rebuilt page or its failure,
// ordered by page id.
type BatchResult struct {
	Pages []batch.Result[*RenderedPage]
}

func (r *BatchResult) Done() []*RenderedPage {
	var out []*RenderedPage
	for _, p := range r.Pages {
		if p.State == batch.Done {
			out = append(out, p.Value)
		}
	}
	return out
}

func (r *BatchResult) Failed() []batch.PageError {
	var out []batch.PageError
	for _, p := range r.Pages {
		if p.State == batch.Failed {
			out = append(out, batch.PageError{ID: p.ID, Err: p.Err})
		}
	}
	return out
}

func (r *BatchResult) Warnings() int {
	n := 0
	for _, p := range r.Done() {
		n += len(p.Warnings)
	}
	return n
}

// Commit swaps the rebuilt state of every Done page into d and records the
// failure of every Failed page. Failed pages keep their original content
// and boxes.
func (d *Document) Commit(r *BatchResult) {
	for _, res := range r.Pages {
		p := d.Page(res.ID)
		if p == nil {
			continue
		}
		switch res.State {
		case batch.Done:
			p.Content = res.Value.Content
			p.Boxes = res.Value.Boxes
			p.Warnings = res.Value.Warnings
			p.Rebuilt = true
			p.Err = nil
		case batch.Failed:
			p.Err = res.Err
		}
	}
}
