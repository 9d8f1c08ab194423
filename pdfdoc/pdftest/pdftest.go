// Package pdftest writes small uncompressed PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"

	"trimborder/engine/geometry"
)

// Page is one page of a generated document. A zero Trim omits the TrimBox.
type Page struct {
	Media   geometry.Rect
	Trim    geometry.Rect
	Content string
}

// A4 is a page with MediaBox and TrimBox both set to A4.
func A4(content string) Page {
	r := geometry.NewRect(0, 0, geometry.MM(210), geometry.MM(297))
	return Page{Media: r, Trim: r, Content: content}
}

// Doc is a generated document. A non-empty Title adds an info dict.
type Doc struct {
	Title string
	Pages []Page
}

// Build returns a PDF 1.4 file with one content stream per page.
func Build(pages ...Page) []byte { return Doc{Pages: pages}.Bytes() }

func (doc Doc) Bytes() []byte {
	pages := doc.Pages
	n := 2 + 2*len(pages)
	info := ""
	if doc.Title != "" {
		n++
		info = fmt.Sprintf(" /Info %d 0 R", n)
	}
	objs := make([]string, n+1)
	if info != "" {
		objs[n] = fmt.Sprintf("<< /Title (%s) >>", doc.Title)
	}

	kids := make([]string, len(pages))
	for i, p := range pages {
		page, content := 3+2*i, 4+2*i
		kids[i] = fmt.Sprintf("%d 0 R", page)

		var d strings.Builder
		fmt.Fprintf(&d, "<< /Type /Page /Parent 2 0 R /MediaBox %s", box(p.Media))
		if p.Trim != (geometry.Rect{}) {
			fmt.Fprintf(&d, " /TrimBox %s", box(p.Trim))
		}
		fmt.Fprintf(&d, " /Resources << >> /Contents %d 0 R >>", content)
		objs[page] = d.String()
		objs[content] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.Content), p.Content)
	}
	objs[1] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, n+1)
	for i := 1; i <= n; i++ {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i, objs[i])
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", n+1)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", n+1, info, xref)
	return b.Bytes()
}

func box(r geometry.Rect) string {
	return fmt.Sprintf("[%.4f %.4f %.4f %.4f]", r.LLX, r.LLY, r.URX, r.URY)
}
