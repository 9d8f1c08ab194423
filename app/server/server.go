package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"trimborder/app/api"
	"trimborder/app/middleware"
	"trimborder/jobs"
	"trimborder/store"
	"trimborder/types"
)

const maxUpload = 256 << 20

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    maxUpload,
}

type Server struct {
	listenAddr string
	sourceDir  string
	spec       types.BorderSpec
	logger     *slog.Logger
	app        *fiber.App
	store      store.DBStorer
}

func NewServer(addr, sourceDir string, spec types.BorderSpec) *Server {
	return &Server{
		listenAddr: addr,
		sourceDir:  sourceDir,
		spec:       spec,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("shutdown", "error", err.Error())
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}

// New builds the fiber app around st.
func New(st store.DBStorer, sourceDir string, spec types.BorderSpec) *fiber.App {
	var (
		app              = fiber.New(config)
		defaults         = api.NewDefaults(spec)
		checkHandler     = api.NewCheckHandler(storeKind(st))
		transformHandler = api.NewTransformHandler(jobs.NewRunner(st), defaults)
		jobHandler       = api.NewJobHandler(st)
		configHandler    = api.NewConfigHandler(defaults)
		uploadHandler    = api.NewUploadHandler(sourceDir)
		check            = app.Group("/check")
		apiv1            = app.Group("/api/v1")
	)
	app.Use(middleware.RequestLogger(slog.Default(), "/api/"))

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/transform", transformHandler.HandleTransform)
	apiv1.Post("/preview", transformHandler.HandlePreview)
	apiv1.Get("/jobs/:id", jobHandler.HandleGetJob)
	apiv1.Get("/config", configHandler.HandleGetConfig)
	apiv1.Put("/config", configHandler.HandleSetConfig)
	apiv1.Post("/upload", uploadHandler.HandleUpload)
	return app
}

func storeKind(st store.DBStorer) string {
	switch st.(type) {
	case *store.PostgresStore:
		return "postgres"
	case *store.MemoryStore:
		return "memory"
	case nil:
		return "none"
	}
	return "custom"
}

func (s *Server) Run() {
	st, err := store.Open(context.Background())
	if err != nil {
		s.logger.Error("error to open job store", "error", err.Error())
		return
	}
	s.store = st
	s.app = New(st, s.sourceDir, s.spec)

	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
