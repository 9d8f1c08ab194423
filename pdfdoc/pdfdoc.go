package pdfdoc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"trimborder/engine"
	"trimborder/engine/content"
	"trimborder/engine/geometry"
)

// Source is an opened PDF. Pages are extracted once into an engine
// Document; the pdfcpu context stays behind for Save.
type Source struct {
	mu      sync.Mutex
	ctx     *model.Context
	conf    *model.Configuration
	doc     *engine.Document
	samples map[int]*raster
	info    Info
	logger  *slog.Logger
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open reads the PDF at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses and validates a PDF and extracts every page. A page whose
// dict or content cannot be extracted is kept with LoadErr set so it fails
// on its own during the transform.
func Read(rs io.ReadSeeker) (*Source, error) {
	conf := configuration()
	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	s := &Source{
		ctx:     ctx,
		conf:    conf,
		doc:     &engine.Document{},
		samples: make(map[int]*raster),
		logger:  slog.Default(),
	}
	for nr := 1; nr <= ctx.PageCount; nr++ {
		p, err := s.page(nr)
		if err != nil {
			s.logger.Warn("page unreadable", "page", nr, "err", err)
			p = &engine.Page{ID: nr, LoadErr: err}
		}
		s.doc.Pages = append(s.doc.Pages, p)
	}
	return s, nil
}

func (s *Source) Document() *engine.Document { return s.doc }

func (s *Source) PageCount() int { return s.ctx.PageCount }

// page reads one page without consolidating its resources, which would
// parse the content stream before the page can fail on its own.
func (s *Source) page(nr int) (*engine.Page, error) {
	d, _, inh, err := s.ctx.PageDict(nr, false)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("missing page dict")
	}
	p := &engine.Page{ID: nr}
	if p.Boxes, err = s.boxes(d, inh); err != nil {
		return nil, err
	}

	r, err := pdfcpu.ExtractPageContent(s.ctx, nr)
	if err == nil {
		p.Content, err = io.ReadAll(r)
	}
	if err != nil {
		s.logger.Warn("page content unreadable", "page", nr, "err", err)
		p.LoadErr = err
		return p, nil
	}
	if inh != nil && inh.Resources != nil {
		p.Images = s.xobjects(inh.Resources)
	}
	return p, nil
}

func (s *Source) boxes(d pdftypes.Dict, inh *model.InheritedPageAttrs) (geometry.Boxes, error) {
	var b geometry.Boxes
	media, ok, err := s.box(d, "MediaBox")
	if err != nil {
		return b, err
	}
	switch {
	case ok:
		b.Media = media
	case inh != nil && inh.MediaBox != nil:
		b.Media = fromRectangle(inh.MediaBox)
	default:
		return b, errors.New("no MediaBox")
	}
	if b.Trim, b.HasTrim, err = s.box(d, "TrimBox"); err != nil {
		return b, err
	}
	if b.Bleed, b.HasBleed, err = s.box(d, "BleedBox"); err != nil {
		return b, err
	}
	if b.Crop, b.HasCrop, err = s.box(d, "CropBox"); err != nil {
		return b, err
	}
	if !b.HasCrop && inh != nil && inh.CropBox != nil {
		b.Crop, b.HasCrop = fromRectangle(inh.CropBox), true
	}
	return b, nil
}

func (s *Source) box(d pdftypes.Dict, key string) (geometry.Rect, bool, error) {
	o, found := d.Find(key)
	if !found || o == nil {
		return geometry.Rect{}, false, nil
	}
	arr, err := s.ctx.DereferenceArray(o)
	if err != nil {
		return geometry.Rect{}, false, fmt.Errorf("%s: %w", key, err)
	}
	r, err := s.rect(arr)
	if err != nil {
		return geometry.Rect{}, false, fmt.Errorf("%s: %w", key, err)
	}
	return r, true, nil
}

func (s *Source) rect(arr pdftypes.Array) (geometry.Rect, error) {
	v, err := s.numbers(arr, 4)
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.NewRect(
		math.Min(v[0], v[2]), math.Min(v[1], v[3]),
		math.Max(v[0], v[2]), math.Max(v[1], v[3]),
	), nil
}

func (s *Source) numbers(arr pdftypes.Array, n int) ([]float64, error) {
	if len(arr) != n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(arr))
	}
	out := make([]float64, n)
	for i, o := range arr {
		o, err := s.ctx.Dereference(o)
		if err != nil {
			return nil, err
		}
		switch v := o.(type) {
		case pdftypes.Integer:
			out[i] = float64(v)
		case pdftypes.Float:
			out[i] = float64(v)
		default:
			return nil, fmt.Errorf("not a number: %v", o)
		}
	}
	return out, nil
}

func fromRectangle(r *pdftypes.Rectangle) geometry.Rect {
	return geometry.NewRect(
		math.Min(r.LL.X, r.UR.X), math.Min(r.LL.Y, r.UR.Y),
		math.Max(r.LL.X, r.UR.X), math.Max(r.LL.Y, r.UR.Y),
	)
}

func toRectangle(r geometry.Rect) *pdftypes.Rectangle {
	return pdftypes.NewRectangle(r.LLX, r.LLY, r.URX, r.URY)
}

// xobjects lists the image and form XObjects of a resource dict. Image
// pixels are only decoded when the stretcher asks for a colour.
func (s *Source) xobjects(res pdftypes.Dict) map[string]content.ImageInfo {
	o, found := res.Find("XObject")
	if !found {
		return nil
	}
	xd, err := s.ctx.DereferenceDict(o)
	if err != nil || xd == nil {
		return nil
	}
	out := make(map[string]content.ImageInfo, len(xd))
	for name, ref := range xd {
		sd, _, err := s.ctx.DereferenceStreamDict(ref)
		if err != nil || sd == nil {
			s.logger.Debug("xobject skipped", "name", name, "err", err)
			continue
		}
		info := content.ImageInfo{Name: name}
		switch st := sd.Subtype(); {
		case st != nil && *st == "Form":
			info.Form = true
			if arr := sd.ArrayEntry("BBox"); arr != nil {
				if r, err := s.rect(arr); err == nil {
					info.BBox = r
				}
			}
			info.Matrix = geometry.Identity()
			if arr := sd.ArrayEntry("Matrix"); arr != nil {
				if v, err := s.numbers(arr, 6); err == nil {
					copy(info.Matrix[:], v)
				}
			}
		case st != nil && *st == "Image":
			if w := sd.IntEntry("Width"); w != nil {
				info.Width = *w
			}
			if h := sd.IntEntry("Height"); h != nil {
				info.Height = *h
			}
			info.Sampler = s.sampler(ref, sd, info.Width, info.Height)
		default:
			continue
		}
		out[name] = info
	}
	return out
}

// sampler shares one lazily decoded raster per image object across pages.
func (s *Source) sampler(ref pdftypes.Object, sd *pdftypes.StreamDict, w, h int) content.Sampler {
	ir, ok := ref.(pdftypes.IndirectRef)
	if !ok {
		return newRaster(sd, w, h)
	}
	nr := int(ir.ObjectNumber)
	if r, ok := s.samples[nr]; ok {
		return r
	}
	r := newRaster(sd, w, h)
	s.samples[nr] = r
	return r
}
