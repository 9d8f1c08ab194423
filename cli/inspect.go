package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trimborder/engine"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/pdfdoc"
	"trimborder/types"
)

type markReport struct {
	Corner    string  `yaml:"corner"`
	OffsetXMM float64 `yaml:"offset_x_mm"`
	OffsetYMM float64 `yaml:"offset_y_mm"`
	Confident bool    `yaml:"confident"`
}

type pageReport struct {
	Page     int          `yaml:"page"`
	MediaBox string       `yaml:"media_box"`
	TrimBox  string       `yaml:"trim_box"`
	BleedBox string       `yaml:"bleed_box,omitempty"`
	CropBox  string       `yaml:"crop_box,omitempty"`
	TrimMM   string       `yaml:"trim_mm"`
	Marks    []markReport `yaml:"marks,omitempty"`
	Error    string       `yaml:"error,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the page boxes and detected cut marks of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q", format)
			}
			spec, err := types.BorderSpecFromEnv(types.DefaultBorderSpec())
			if err != nil {
				return err
			}
			src, err := pdfdoc.Open(args[0])
			if err != nil {
				return err
			}
			reports := inspectDocument(src.Document(), spec.Detect)
			if format == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(reports)
			}
			printReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or yaml")

	return cmd
}

func inspectDocument(doc *engine.Document, cfg types.DetectConfig) []pageReport {
	reports := make([]pageReport, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		reports = append(reports, inspectPage(p, cfg))
	}
	return reports
}

func inspectPage(p *engine.Page, cfg types.DetectConfig) pageReport {
	boxes := p.Boxes.Normalize()
	r := pageReport{
		Page:     p.ID,
		MediaBox: boxes.Media.String(),
		TrimBox:  boxes.Trim.String(),
		TrimMM:   fmt.Sprintf("%.1f x %.1f", geometry.ToMM(boxes.Trim.Width()), geometry.ToMM(boxes.Trim.Height())),
	}
	if boxes.HasBleed {
		r.BleedBox = boxes.Bleed.String()
	}
	if boxes.HasCrop {
		r.CropBox = boxes.Crop.String()
	}
	if p.LoadErr != nil {
		r.Error = p.LoadErr.Error()
		return r
	}

	set, _, err := marks.DetectPage(p.Content, p.Images, boxes.Trim, cfg)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	for _, g := range set.Groups {
		if !g.Found {
			continue
		}
		r.Marks = append(r.Marks, markReport{
			Corner:    g.Corner.String(),
			OffsetXMM: round(geometry.ToMM(g.OffsetX)),
			OffsetYMM: round(geometry.ToMM(g.OffsetY)),
			Confident: g.Confident,
		})
	}
	return r
}

func round(v float64) float64 { return math.Round(v*100) / 100 }

func printReports(w io.Writer, reports []pageReport) {
	for _, r := range reports {
		fmt.Fprintf(w, "page %d  trim %s mm\n", r.Page, r.TrimMM)
		fmt.Fprintf(w, "  MediaBox %s\n  TrimBox  %s\n", r.MediaBox, r.TrimBox)
		if r.BleedBox != "" {
			fmt.Fprintf(w, "  BleedBox %s\n", r.BleedBox)
		}
		if r.CropBox != "" {
			fmt.Fprintf(w, "  CropBox  %s\n", r.CropBox)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
			continue
		}
		if len(r.Marks) == 0 {
			fmt.Fprintln(w, "  no cut marks")
		}
		for _, m := range r.Marks {
			fmt.Fprintf(w, "  mark %-12s offset %.2f / %.2f mm", m.Corner, m.OffsetXMM, m.OffsetYMM)
			if !m.Confident {
				fmt.Fprint(w, " (low confidence)")
			}
			fmt.Fprintln(w)
		}
	}
}
