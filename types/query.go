package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"trimborder/engine/geometry"
)

type Validater interface {
	Validate() map[string]string
}

// TransformParams are the optional overrides accepted by the transform and
// preview endpoints. Zero values keep the server defaults.
type TransformParams struct {
	WidthMM      float64 `form:"width_mm" json:"width_mm" validate:"omitempty,gt=0,lte=50"`
	StretchMode  string  `form:"stretch_mode" json:"stretch_mode" validate:"omitempty,oneof=clamp-edge mirror solid-fill"`
	CornerFill   string  `form:"corner_fill" json:"corner_fill" validate:"omitempty,oneof=nearest-corner-sample average"`
	BatchFailure string  `form:"batch_failure" json:"batch_failure" validate:"omitempty,oneof=abort-on-first-failure continue-and-collect"`
	MediaPolicy  string  `form:"media_policy" json:"media_policy" validate:"omitempty,oneof=allow-growth cap-and-error"`
	SkipFailed   string  `form:"skip_failed_pages" json:"skip_failed_pages" validate:"omitempty,boolean"`
	BorderColor  string  `form:"border_color" json:"border_color" validate:"omitempty,hexcolor"`
}

type PreviewParams struct {
	Page int `form:"page" json:"page" validate:"gte=1"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"_": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func (params *TransformParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *PreviewParams) Validate() map[string]string {
	return validateStruct(params)
}

func (spec *BorderSpec) Validate() map[string]string {
	return validateStruct(spec)
}

// Apply overlays the non-zero params onto spec.
func (params *TransformParams) Apply(spec BorderSpec) BorderSpec {
	if params.WidthMM > 0 {
		spec.Width = geometry.MM(params.WidthMM)
	}
	if params.StretchMode != "" {
		spec.StretchMode = StretchMode(params.StretchMode)
	}
	if params.CornerFill != "" {
		spec.CornerFill = CornerFillPolicy(params.CornerFill)
	}
	if params.BatchFailure != "" {
		spec.BatchFailure = BatchFailurePolicy(params.BatchFailure)
	}
	if params.MediaPolicy != "" {
		spec.MediaPolicy = MediaPolicy(params.MediaPolicy)
	}
	switch params.SkipFailed {
	case "1", "t", "T", "true", "TRUE", "True":
		spec.SkipFailedPages = true
	case "0", "f", "F", "false", "FALSE", "False":
		spec.SkipFailedPages = false
	}
	if params.BorderColor != "" {
		spec.BorderColor = params.BorderColor
	}
	return spec
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

// TransformSummary is returned alongside processed documents.
type TransformSummary struct {
	JobID       string       `json:"job_id"`
	PagesTotal  int          `json:"pages_total"`
	PagesDone   int          `json:"pages_done"`
	PagesFailed int          `json:"pages_failed"`
	Pages       []PageRecord `json:"pages"`
}
