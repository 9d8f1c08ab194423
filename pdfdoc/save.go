package pdfdoc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"trimborder/engine"
)

var ErrSaveRefused = errors.New("save refused")

// selectPages splits doc into pages that were rebuilt and pages that were
// not, both in page order.
func selectPages(doc *engine.Document) (keep, drop []*engine.Page) {
	for _, p := range doc.Pages {
		if p.Rebuilt {
			keep = append(keep, p)
		} else {
			drop = append(drop, p)
		}
	}
	return keep, drop
}

func refusal(drop []*engine.Page, total int, skip bool) error {
	switch {
	case len(drop) == 0:
		return nil
	case len(drop) == total:
		return fmt.Errorf("%w: no page was rebuilt", ErrSaveRefused)
	case !skip:
		ids := make([]int, len(drop))
		for i, p := range drop {
			ids[i] = p.ID
		}
		return fmt.Errorf("%w: pages %v are not done", ErrSaveRefused, ids)
	}
	return nil
}

// Save writes the committed document to w. Pages that are not rebuilt are
// removed when skipFailed is set; otherwise nothing is written and the
// error wraps ErrSaveRefused.
func (s *Source) Save(w io.Writer, skipFailed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep, drop := selectPages(s.doc)
	if err := refusal(drop, len(s.doc.Pages), skipFailed); err != nil {
		return err
	}
	for _, p := range keep {
		if err := s.apply(p); err != nil {
			return fmt.Errorf("page %d: %w", p.ID, err)
		}
	}
	if len(drop) == 0 {
		if err := s.writeInfo(s.ctx, pdftypes.NewDict()); err != nil {
			return fmt.Errorf("document info: %w", err)
		}
		return api.WriteContext(s.ctx, w)
	}

	for _, p := range drop {
		s.logger.Warn("page skipped", "page", p.ID, "err", p.Err)
	}
	nrs := make([]int, len(keep))
	for i, p := range keep {
		nrs[i] = p.ID
	}
	out, err := pdfcpu.ExtractPages(s.ctx, nrs, false)
	if err != nil {
		return fmt.Errorf("extract pages: %w", err)
	}
	if err := s.writeInfo(out, documentInfo(s.ctx)); err != nil {
		return fmt.Errorf("document info: %w", err)
	}
	return api.WriteContext(out, w)
}

// apply replaces the page content with one new stream and writes the
// expanded boxes.
func (s *Source) apply(p *engine.Page) error {
	d, _, _, err := s.ctx.PageDict(p.ID, false)
	if err != nil {
		return err
	}
	sd, err := s.ctx.NewStreamDictForBuf(p.Content)
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	ir, err := s.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}
	d.Update("Contents", *ir)

	b := p.Boxes
	d.Update("MediaBox", toRectangle(b.Media).Array())
	d.Update("TrimBox", toRectangle(b.Trim).Array())
	if b.HasBleed {
		d.Update("BleedBox", toRectangle(b.Bleed).Array())
	}
	if b.HasCrop {
		d.Update("CropBox", toRectangle(b.Crop).Array())
	}
	return nil
}

var pathLocks sync.Map

func lockPath(path string) func() {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// SaveFile writes to a temp file next to path and renames it into place.
// Writers of the same path are serialized.
func (s *Source) SaveFile(path string, skipFailed bool) error {
	unlock := lockPath(path)
	defer unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp, skipFailed); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
