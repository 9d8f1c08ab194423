package pdfdoc

import (
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"trimborder/engine/geometry"
)

// Creator is written to the info dict of processed documents.
const Creator = "trimborder"

// Info holds document information entries applied on Save. Empty fields
// leave the existing entries alone.
type Info struct {
	Subject string
	Creator string
}

// ProcessingInfo describes a run that added a border of width points.
func ProcessingInfo(width float64, now time.Time) Info {
	return Info{
		Subject: fmt.Sprintf("Processed with %s on %s - Added %gmm background border",
			Creator, now.Format("2006-01-02 15:04:05"), roundMM(width)),
		Creator: Creator,
	}
}

func roundMM(v float64) float64 {
	return float64(int64(geometry.ToMM(v)*100+0.5)) / 100
}

// SetInfo sets the info entries written by the next Save.
func (s *Source) SetInfo(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// documentInfo copies the direct text entries of the info dict of ctx.
func documentInfo(ctx *model.Context) pdftypes.Dict {
	d := pdftypes.NewDict()
	if ctx.Info == nil {
		return d
	}
	src, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || src == nil {
		return d
	}
	for k, v := range src {
		switch v.(type) {
		case pdftypes.StringLiteral, pdftypes.HexLiteral, pdftypes.Name:
			d[k] = v
		}
	}
	return d
}

// writeInfo merges base and the configured entries into the info dict of
// ctx, creating it when absent. Producer and the dates are left to pdfcpu.
func (s *Source) writeInfo(ctx *model.Context, base pdftypes.Dict) error {
	for key, v := range map[string]string{"Subject": s.info.Subject, "Creator": s.info.Creator} {
		if v == "" {
			continue
		}
		esc, err := pdftypes.Escape(v)
		if err != nil {
			return err
		}
		base.Update(key, pdftypes.StringLiteral(*esc))
	}
	if len(base) == 0 {
		return nil
	}
	if ctx.Info != nil {
		d, err := ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return err
		}
		if d != nil {
			for k, v := range base {
				d.Update(k, v)
			}
			return nil
		}
	}
	ir, err := ctx.IndRefForNewObject(base)
	if err != nil {
		return err
	}
	ctx.Info = ir
	return nil
}
