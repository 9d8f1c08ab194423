package api

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"trimborder/engine"
	"trimborder/jobs"
	"trimborder/pdfdoc"
	"trimborder/store"
	"trimborder/types"
)

type TransformHandler struct {
	runner   *jobs.Runner
	defaults *Defaults
}

func NewTransformHandler(runner *jobs.Runner, defaults *Defaults) *TransformHandler {
	return &TransformHandler{
		runner:   runner,
		defaults: defaults,
	}
}

func readUpload(c *fiber.Ctx) (*multipart.FileHeader, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, ErrMissingFile()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return fileHeader, data, nil
}

func (h *TransformHandler) spec(c *fiber.Ctx) (types.BorderSpec, error) {
	var params types.TransformParams
	if c.BodyParser(&params) != nil {
		return types.BorderSpec{}, ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.BorderSpec{}, types.NewValidationError(errors)
	}
	return params.Apply(h.defaults.Get()), nil
}

// HandleTransform processes the uploaded PDF and returns the bordered
// document. The job id and page counts travel in response headers.
func (h *TransformHandler) HandleTransform(c *fiber.Ctx) error {
	spec, err := h.spec(c)
	if err != nil {
		return err
	}
	fileHeader, data, err := readUpload(c)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	job, err := h.runner.Stream(c.UserContext(), bytes.NewReader(data), &out, fileHeader.Filename, spec, jobs.OriginAPI)
	if job != nil {
		c.Set("X-Job-ID", job.ID.String())
	}
	switch {
	case errors.Is(err, pdfdoc.ErrSaveRefused):
		return c.Status(fiber.StatusConflict).JSON(types.TransformSummary{
			JobID:       job.ID.String(),
			PagesTotal:  job.PagesTotal,
			PagesDone:   job.PagesDone,
			PagesFailed: job.PagesFailed,
			Pages:       job.Pages,
		})
	case err != nil:
		var verr types.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return ErrUnprocessable(err)
	}

	name := filepath.Base(pdfdoc.OutputPath(fileHeader.Filename, "", "", false, time.Now()))
	c.Set("X-Pages-Done", strconv.Itoa(job.PagesDone))
	c.Set("X-Pages-Failed", strconv.Itoa(job.PagesFailed))
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(out.Bytes())
}

type previewResponse struct {
	*engine.RenderedPage
	Content string `json:"content"`
}

// HandlePreview rebuilds one page of the uploaded PDF and returns its new
// boxes, marks, warnings and content stream. Nothing is written.
func (h *TransformHandler) HandlePreview(c *fiber.Ctx) error {
	spec, err := h.spec(c)
	if err != nil {
		return err
	}
	var params types.PreviewParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}
	_, data, err := readUpload(c)
	if err != nil {
		return err
	}

	src, err := pdfdoc.Read(bytes.NewReader(data))
	if err != nil {
		return ErrUnprocessable(err)
	}
	page := src.Document().Page(params.Page)
	if page == nil {
		return ErrNotFound(params.Page, "page")
	}

	rendered, err := h.runner.Engine().PreviewTransform(c.UserContext(), page, spec)
	if err != nil {
		return ErrUnprocessable(err)
	}
	return c.JSON(previewResponse{RenderedPage: rendered, Content: string(rendered.Content)})
}

type JobHandler struct {
	store store.DBStorer
}

func NewJobHandler(st store.DBStorer) *JobHandler {
	return &JobHandler{
		store: st,
	}
}

func (h *JobHandler) HandleGetJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	job, err := h.store.GetJobByID(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound(id, "job")
	}
	if err != nil {
		return err
	}
	return c.JSON(job)
}
