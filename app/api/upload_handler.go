package api

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UploadHandler drops PDFs into the hot folder watched by the loader.
type UploadHandler struct {
	sourceDir string
}

func NewUploadHandler(sourceDir string) *UploadHandler {
	return &UploadHandler{
		sourceDir: sourceDir,
	}
}

func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrMissingFile()
	}

	name := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return NewError(fiber.StatusUnsupportedMediaType, "only .pdf files are accepted")
	}

	if err := c.SaveFile(fileHeader, filepath.Join(h.sourceDir, name)); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"file": name, "queued": true})
}
