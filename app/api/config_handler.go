package api

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"trimborder/types"
)

// Defaults is the server-wide BorderSpec that request params are applied on.
type Defaults struct {
	mu   sync.RWMutex
	spec types.BorderSpec
}

func NewDefaults(spec types.BorderSpec) *Defaults {
	return &Defaults{spec: spec}
}

func (d *Defaults) Get() types.BorderSpec {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

func (d *Defaults) set(spec types.BorderSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec = spec
}

type ConfigHandler struct {
	defaults *Defaults
}

func NewConfigHandler(defaults *Defaults) *ConfigHandler {
	return &ConfigHandler{
		defaults: defaults,
	}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(h.defaults.Get())
}

// HandleSetConfig applies the params to the server defaults and returns
// the resulting spec.
func (h *ConfigHandler) HandleSetConfig(c *fiber.Ctx) error {
	var params types.TransformParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	spec := params.Apply(h.defaults.Get())
	if errors := types.Validate(&spec); len(errors) > 0 {
		return types.NewValidationError(errors)
	}
	h.defaults.set(spec)

	return c.JSON(spec)
}
