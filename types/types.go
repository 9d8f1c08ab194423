package types

import (
	"time"

	"github.com/google/uuid"

	"trimborder/engine/geometry"
)

type StretchMode string

const (
	StretchClampEdge StretchMode = "clamp-edge"
	StretchMirror    StretchMode = "mirror"
	StretchSolidFill StretchMode = "solid-fill"
)

type CornerFillPolicy string

const (
	CornerNearestSample CornerFillPolicy = "nearest-corner-sample"
	CornerAverage       CornerFillPolicy = "average"
)

type BatchFailurePolicy string

const (
	AbortOnFirstFailure BatchFailurePolicy = "abort-on-first-failure"
	ContinueAndCollect  BatchFailurePolicy = "continue-and-collect"
)

type MediaPolicy string

const (
	MediaAllowGrowth MediaPolicy = "allow-growth"
	MediaCapAndError MediaPolicy = "cap-and-error"
)

// DetectConfig holds the cut mark detector tolerances. Lengths are in points,
// AngleTolerance is in degrees and LengthTolerance is a fraction of the longer
// segment of a pair.
type DetectConfig struct {
	SearchBand      float64 `json:"search_band" validate:"gt=0"`
	MaxStrokeWidth  float64 `json:"max_stroke_width" validate:"gt=0"`
	AngleTolerance  float64 `json:"angle_tolerance" validate:"gte=0,lt=45"`
	LengthTolerance float64 `json:"length_tolerance" validate:"gte=0,lt=1"`
	OffsetTolerance float64 `json:"offset_tolerance" validate:"gte=0"`
	AlignTolerance  float64 `json:"align_tolerance" validate:"gte=0"`
}

// BorderSpec is the immutable configuration of one transform run.
// Lengths are in points.
type BorderSpec struct {
	Width           float64            `json:"width" validate:"gt=0"`
	StretchMode     StretchMode        `json:"stretch_mode" validate:"oneof=clamp-edge mirror solid-fill"`
	CornerFill      CornerFillPolicy   `json:"corner_fill" validate:"oneof=nearest-corner-sample average"`
	BatchFailure    BatchFailurePolicy `json:"batch_failure" validate:"oneof=abort-on-first-failure continue-and-collect"`
	MediaPolicy     MediaPolicy        `json:"media_policy" validate:"oneof=allow-growth cap-and-error"`
	MediaGrowthCap  float64            `json:"media_growth_cap" validate:"gte=0"`
	SkipFailedPages bool               `json:"skip_failed_pages"`
	BorderColor     string             `json:"border_color" validate:"hexcolor"`
	Precision       int                `json:"precision" validate:"gte=0,lte=6"`
	SourceStrip     float64            `json:"source_strip" validate:"gt=0"`
	SampleDepth     float64            `json:"sample_depth" validate:"gt=0"`
	TightTolerance  float64            `json:"tight_tolerance" validate:"gte=0"`
	EdgeEpsilon     float64            `json:"edge_epsilon" validate:"gt=0"`
	Workers         int                `json:"workers" validate:"gte=0"`
	ProcessingInfo  bool               `json:"processing_info"`
	Detect          DetectConfig       `json:"detect"`
}

// DefaultBorderSpec returns the 3mm clamp-edge configuration.
func DefaultBorderSpec() BorderSpec {
	return BorderSpec{
		Width:           geometry.MM(3),
		StretchMode:     StretchClampEdge,
		CornerFill:      CornerNearestSample,
		BatchFailure:    ContinueAndCollect,
		MediaPolicy:     MediaAllowGrowth,
		SkipFailedPages: true,
		BorderColor:     "#FFFFFF",
		Precision:       3,
		SourceStrip:     geometry.MM(1),
		SampleDepth:     0.5,
		TightTolerance:  0.5,
		EdgeEpsilon:     0.05,
		Workers:         2,
		ProcessingInfo:  true,
		Detect:          DefaultDetectConfig(),
	}
}

func DefaultDetectConfig() DetectConfig {
	return DetectConfig{
		SearchBand:      geometry.MM(10),
		MaxStrokeWidth:  1,
		AngleTolerance:  2,
		LengthTolerance: 0.15,
		OffsetTolerance: geometry.MM(0.5),
		AlignTolerance:  6,
	}
}

// Config drives the hot folder service.
type Config struct {
	MonitoringTime time.Duration
	SourceDir      string
	OutputDir      string
	ArchiveDir     string
	BadDir         string
	Suffix         string
	Timestamp      bool
	BackupOriginal bool
}

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is one document run as stored in the database.
type Job struct {
	ID          uuid.UUID    `json:"id"`
	Source      string       `json:"source"` // hotfolder, api, cli
	SourcePath  string       `json:"source_path"`
	OutputPath  string       `json:"output_path"`
	Status      JobStatus    `json:"status"`
	PagesTotal  int          `json:"pages_total"`
	PagesDone   int          `json:"pages_done"`
	PagesFailed int          `json:"pages_failed"`
	Warnings    int          `json:"warnings"`
	Spec        BorderSpec   `json:"spec"`
	CreatedAt   time.Time    `json:"created_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Pages       []PageRecord `json:"pages,omitempty"`
}

// PageRecord is the terminal state of one page of a job.
type PageRecord struct {
	JobID    uuid.UUID `json:"-"`
	PageID   int       `json:"page"`
	State    string    `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}
