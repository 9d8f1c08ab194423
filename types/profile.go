package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"trimborder/engine/geometry"
)

// Profile is the on-disk form of a BorderSpec. Lengths are in millimetres
// except stroke widths and the align tolerance, which are in points.
type Profile struct {
	WidthMM          float64       `yaml:"width_mm"`
	StretchMode      string        `yaml:"stretch_mode"`
	CornerFill       string        `yaml:"corner_fill"`
	BatchFailure     string        `yaml:"batch_failure"`
	MediaPolicy      string        `yaml:"media_policy"`
	MediaGrowthCapMM *float64      `yaml:"media_growth_cap_mm"`
	SkipFailedPages  *bool         `yaml:"skip_failed_pages"`
	BorderColor      string        `yaml:"border_color"`
	Precision        *int          `yaml:"precision"`
	SourceStripMM    float64       `yaml:"source_strip_mm"`
	Workers          int           `yaml:"workers"`
	ProcessingInfo   *bool         `yaml:"processing_info"`
	Detect           DetectProfile `yaml:"detect"`
}

type DetectProfile struct {
	SearchBandMM      float64 `yaml:"search_band_mm"`
	MaxStrokeWidth    float64 `yaml:"max_stroke_width"`
	AngleToleranceDeg float64 `yaml:"angle_tolerance_deg"`
	LengthTolerance   float64 `yaml:"length_tolerance"`
	OffsetToleranceMM float64 `yaml:"offset_tolerance_mm"`
	AlignTolerance    float64 `yaml:"align_tolerance"`
}

// ParseProfile overlays a YAML profile onto spec and validates the result.
func ParseProfile(data []byte, spec BorderSpec) (BorderSpec, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return spec, fmt.Errorf("parse profile: %w", err)
	}
	spec = p.apply(spec)
	if errs := spec.Validate(); len(errs) > 0 {
		return spec, NewValidationError(errs)
	}
	return spec, nil
}

// LoadProfile reads a YAML profile from path. An empty path returns spec unchanged.
func LoadProfile(path string, spec BorderSpec) (BorderSpec, error) {
	if path == "" {
		return spec, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data, spec)
}

func (p Profile) apply(spec BorderSpec) BorderSpec {
	if p.WidthMM > 0 {
		spec.Width = geometry.MM(p.WidthMM)
	}
	if p.StretchMode != "" {
		spec.StretchMode = StretchMode(p.StretchMode)
	}
	if p.CornerFill != "" {
		spec.CornerFill = CornerFillPolicy(p.CornerFill)
	}
	if p.BatchFailure != "" {
		spec.BatchFailure = BatchFailurePolicy(p.BatchFailure)
	}
	if p.MediaPolicy != "" {
		spec.MediaPolicy = MediaPolicy(p.MediaPolicy)
	}
	if p.MediaGrowthCapMM != nil {
		spec.MediaGrowthCap = geometry.MM(*p.MediaGrowthCapMM)
	}
	if p.SkipFailedPages != nil {
		spec.SkipFailedPages = *p.SkipFailedPages
	}
	if p.BorderColor != "" {
		spec.BorderColor = p.BorderColor
	}
	if p.Precision != nil {
		spec.Precision = *p.Precision
	}
	if p.SourceStripMM > 0 {
		spec.SourceStrip = geometry.MM(p.SourceStripMM)
	}
	if p.Workers > 0 {
		spec.Workers = p.Workers
	}
	if p.ProcessingInfo != nil {
		spec.ProcessingInfo = *p.ProcessingInfo
	}
	d := p.Detect
	if d.SearchBandMM > 0 {
		spec.Detect.SearchBand = geometry.MM(d.SearchBandMM)
	}
	if d.MaxStrokeWidth > 0 {
		spec.Detect.MaxStrokeWidth = d.MaxStrokeWidth
	}
	if d.AngleToleranceDeg > 0 {
		spec.Detect.AngleTolerance = d.AngleToleranceDeg
	}
	if d.LengthTolerance > 0 {
		spec.Detect.LengthTolerance = d.LengthTolerance
	}
	if d.OffsetToleranceMM > 0 {
		spec.Detect.OffsetTolerance = geometry.MM(d.OffsetToleranceMM)
	}
	if d.AlignTolerance > 0 {
		spec.Detect.AlignTolerance = d.AlignTolerance
	}
	return spec
}

// BorderSpecFromEnv overlays BORDER_* and related variables onto spec.
func BorderSpecFromEnv(spec BorderSpec) (BorderSpec, error) {
	if v := os.Getenv("BORDER_WIDTH_MM"); v != "" {
		mm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return spec, fmt.Errorf("BORDER_WIDTH_MM: %w", err)
		}
		spec.Width = geometry.MM(mm)
	}
	if v := os.Getenv("STRETCH_MODE"); v != "" {
		spec.StretchMode = StretchMode(v)
	}
	if v := os.Getenv("CORNER_FILL"); v != "" {
		spec.CornerFill = CornerFillPolicy(v)
	}
	if v := os.Getenv("BATCH_FAILURE_POLICY"); v != "" {
		spec.BatchFailure = BatchFailurePolicy(v)
	}
	if v := os.Getenv("MEDIA_POLICY"); v != "" {
		spec.MediaPolicy = MediaPolicy(v)
	}
	if v := os.Getenv("SKIP_FAILED_PAGES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return spec, fmt.Errorf("SKIP_FAILED_PAGES: %w", err)
		}
		spec.SkipFailedPages = b
	}
	if v := os.Getenv("BORDER_COLOR"); v != "" {
		spec.BorderColor = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return spec, fmt.Errorf("WORKERS: %w", err)
		}
		spec.Workers = n
	}
	if v := os.Getenv("PROCESSING_INFO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return spec, fmt.Errorf("PROCESSING_INFO: %w", err)
		}
		spec.ProcessingInfo = b
	}
	spec, err := LoadProfile(os.Getenv("BORDER_PROFILE"), spec)
	if err != nil {
		return spec, err
	}
	if errs := spec.Validate(); len(errs) > 0 {
		return spec, NewValidationError(errs)
	}
	return spec, nil
}

// ConfigFromEnv builds the hot folder configuration.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		MonitoringTime: 5 * time.Second,
		SourceDir:      envOr("SOURCE_DIR", "./data/source"),
		OutputDir:      envOr("OUTPUT_DIR", "./data/output"),
		ArchiveDir:     envOr("ARCHIVE_DIR", "./data/archive"),
		BadDir:         envOr("BAD_DIR", "./data/bad"),
		Suffix:         envOr("OUTPUT_SUFFIX", "_bordered"),
	}
	if v := os.Getenv("MONITORING_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("MONITORING_TIME: %w", err)
		}
		cfg.MonitoringTime = d
	}
	cfg.Timestamp = envBool("OUTPUT_TIMESTAMP")
	cfg.BackupOriginal = envBool("BACKUP_ORIGINAL")
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
