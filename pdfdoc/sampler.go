package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"trimborder/engine/content"
	"trimborder/engine/geometry"
)

var errUnsupportedImage = errors.New("unsupported image encoding")

// raster samples the outer pixels of an image XObject. Decoding happens on
// first use and at most once, whichever page asks first.
type raster struct {
	sd   *pdftypes.StreamDict
	w, h int

	once    sync.Once
	err     error
	edges   [4]content.Color
	corners [4]content.Color
}

func newRaster(sd *pdftypes.StreamDict, w, h int) *raster {
	return &raster{sd: sd, w: w, h: h}
}

func (r *raster) EdgeColor(e geometry.Edge) (content.Color, bool) {
	r.once.Do(r.load)
	if r.err != nil {
		return content.Color{}, false
	}
	return r.edges[e], r.edges[e].Known()
}

func (r *raster) CornerColor(c geometry.Corner) (content.Color, bool) {
	r.once.Do(r.load)
	if r.err != nil {
		return content.Color{}, false
	}
	return r.corners[c], r.corners[c].Known()
}

func (r *raster) load() {
	at, err := r.decode()
	if err != nil {
		r.err = err
		return
	}
	r.edges, r.corners = summarize(r.w, r.h, at)
}

// pixelFunc returns the colour at column x, row y with row 0 at the top.
type pixelFunc func(x, y int) content.Color

func (r *raster) decode() (pixelFunc, error) {
	if r.w <= 0 || r.h <= 0 {
		return nil, fmt.Errorf("image size %dx%d", r.w, r.h)
	}
	fp := r.sd.FilterPipeline
	switch {
	case len(fp) == 1 && fp[0].Name == filter.DCT:
		return jpegPixels(r.sd.Raw)
	case len(fp) == 0 || (len(fp) == 1 && fp[0].Name == filter.Flate):
		if bpc := r.sd.IntEntry("BitsPerComponent"); bpc == nil || *bpc != 8 {
			return nil, errUnsupportedImage
		}
		if r.sd.Content == nil {
			if err := r.sd.Decode(); err != nil {
				return nil, err
			}
		}
		return samplePixels(r.sd.Content, r.w, r.h)
	}
	return nil, errUnsupportedImage
}

func jpegPixels(raw []byte) (pixelFunc, error) {
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return func(x, y int) content.Color {
		c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
		return content.RGB(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
	}, nil
}

// samplePixels reads 8-bit samples with 1, 3 or 4 components per pixel.
// The component count is taken from the buffer size, which also covers
// ICCBased colour spaces.
func samplePixels(buf []byte, w, h int) (pixelFunc, error) {
	n := len(buf) / (w * h)
	if n != 1 && n != 3 && n != 4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", errUnsupportedImage, len(buf), w, h)
	}
	v := func(b byte) float64 { return float64(b) / 255 }
	return func(x, y int) content.Color {
		i := (y*w + x) * n
		switch n {
		case 1:
			return content.Gray(v(buf[i]))
		case 3:
			return content.RGB(v(buf[i]), v(buf[i+1]), v(buf[i+2]))
		default:
			return content.CMYK(v(buf[i]), v(buf[i+1]), v(buf[i+2]), v(buf[i+3]))
		}
	}, nil
}

// summarize averages each outer row and column and picks the corner pixels.
func summarize(w, h int, at pixelFunc) (edges, corners [4]content.Color) {
	line := func(n int, px func(i int) content.Color) content.Color {
		cs := make([]content.Color, n)
		for i := range cs {
			cs[i] = px(i)
		}
		c, _ := content.Average(cs...)
		return c
	}
	edges[geometry.Top] = line(w, func(i int) content.Color { return at(i, 0) })
	edges[geometry.Bottom] = line(w, func(i int) content.Color { return at(i, h-1) })
	edges[geometry.Left] = line(h, func(i int) content.Color { return at(0, i) })
	edges[geometry.Right] = line(h, func(i int) content.Color { return at(w-1, i) })

	corners[geometry.UpperLeft] = at(0, 0)
	corners[geometry.UpperRight] = at(w-1, 0)
	corners[geometry.LowerLeft] = at(0, h-1)
	corners[geometry.LowerRight] = at(w-1, h-1)
	return edges, corners
}
