package cli

import (
	"github.com/spf13/pflag"

	"trimborder/engine/geometry"
	"trimborder/types"
)

// specFlags mirrors the BorderSpec fields a user may override.
type specFlags struct {
	profile      string
	widthMM      float64
	stretchMode  string
	cornerFill   string
	batchFailure string
	mediaPolicy  string
	mediaCapMM   float64
	skipFailed   bool
	borderColor  string
	precision    int
	stripMM      float64
	workers      int
	info         bool
}

func (f *specFlags) register(fs *pflag.FlagSet) {
	def := types.DefaultBorderSpec()
	fs.StringVar(&f.profile, "profile", "", "YAML border profile")
	fs.Float64Var(&f.widthMM, "width-mm", geometry.ToMM(def.Width), "Border width in millimetres")
	fs.StringVar(&f.stretchMode, "stretch-mode", string(def.StretchMode), "clamp-edge, mirror or solid-fill")
	fs.StringVar(&f.cornerFill, "corner-fill", string(def.CornerFill), "nearest-corner-sample or average")
	fs.StringVar(&f.batchFailure, "batch-failure", string(def.BatchFailure), "abort-on-first-failure or continue-and-collect")
	fs.StringVar(&f.mediaPolicy, "media-policy", string(def.MediaPolicy), "allow-growth or cap-and-error")
	fs.Float64Var(&f.mediaCapMM, "media-growth-cap-mm", 0, "Largest MediaBox growth per side with cap-and-error")
	fs.BoolVar(&f.skipFailed, "skip-failed", def.SkipFailedPages, "Drop failed pages instead of refusing to save")
	fs.StringVar(&f.borderColor, "border-color", def.BorderColor, "Fill colour for edges without content")
	fs.IntVar(&f.precision, "precision", def.Precision, "Decimal places of written coordinates")
	fs.Float64Var(&f.stripMM, "source-strip-mm", geometry.ToMM(def.SourceStrip), "Width of the edge strip that is stretched")
	fs.IntVar(&f.workers, "workers", def.Workers, "Pages processed in parallel")
	fs.BoolVar(&f.info, "processing-info", def.ProcessingInfo, "Record the run in the document info subject")
}

// spec resolves the environment, then the profile, then explicitly set flags.
func (f *specFlags) spec(fs *pflag.FlagSet) (types.BorderSpec, error) {
	spec, err := types.BorderSpecFromEnv(types.DefaultBorderSpec())
	if err != nil {
		return spec, err
	}
	if spec, err = types.LoadProfile(f.profile, spec); err != nil {
		return spec, err
	}

	if fs.Changed("width-mm") {
		spec.Width = geometry.MM(f.widthMM)
	}
	if fs.Changed("stretch-mode") {
		spec.StretchMode = types.StretchMode(f.stretchMode)
	}
	if fs.Changed("corner-fill") {
		spec.CornerFill = types.CornerFillPolicy(f.cornerFill)
	}
	if fs.Changed("batch-failure") {
		spec.BatchFailure = types.BatchFailurePolicy(f.batchFailure)
	}
	if fs.Changed("media-policy") {
		spec.MediaPolicy = types.MediaPolicy(f.mediaPolicy)
	}
	if fs.Changed("media-growth-cap-mm") {
		spec.MediaGrowthCap = geometry.MM(f.mediaCapMM)
	}
	if fs.Changed("skip-failed") {
		spec.SkipFailedPages = f.skipFailed
	}
	if fs.Changed("border-color") {
		spec.BorderColor = f.borderColor
	}
	if fs.Changed("precision") {
		spec.Precision = f.precision
	}
	if fs.Changed("source-strip-mm") {
		spec.SourceStrip = geometry.MM(f.stripMM)
	}
	if fs.Changed("workers") {
		spec.Workers = f.workers
	}
	if fs.Changed("processing-info") {
		spec.ProcessingInfo = f.info
	}

	if errs := spec.Validate(); len(errs) > 0 {
		return spec, types.NewValidationError(errs)
	}
	return spec, nil
}
