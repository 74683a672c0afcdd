package main

import (
	"context"
	"fmt"

	"DF-APPT/internal/config"
	"DF-APPT/internal/handlers"
	"DF-APPT/internal/processor"
	"DF-APPT/internal/rules"
	"DF-APPT/internal/services"
	"DF-APPT/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// app holds the services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	rules     *rules.Source
	store     storage.TemplateStore
	closers   []func() error
	templates *services.TemplateService
	archiver  *services.BatchArchiver
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	source, err := rules.NewSource(cfg.Rules.File, logger.Named("rules"))
	if err != nil {
		return nil, fmt.Errorf("failed to load rule table: %w", err)
	}
	a.rules = source

	switch cfg.Templates.Source {
	case config.TemplateSourceGCS:
		gcs, err := storage.NewGCSClient(ctx, storage.GCSConfig{
			Bucket:          cfg.GCS.BucketName,
			Prefix:          cfg.GCS.TemplatePrefix,
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsPath: cfg.GCS.CredentialsPath,
		})
		if err != nil {
			return nil, err
		}
		a.store = gcs
		a.closers = append(a.closers, gcs.Close)
	default:
		a.store = storage.NewLocalStore(cfg.Templates.Dir)
	}

	proc := processor.NewDocxProcessor(processor.Options{
		Delimiters: processor.Delimiters{
			Open:  cfg.Render.PlaceholderOpen,
			Close: cfg.Render.PlaceholderClose,
		},
		ParagraphLoop: true,
		Linebreaks:    true,
		Strict:        cfg.Render.Strict,
	})

	var converter services.Converter
	if cfg.Render.OutputFormat == "pdf" {
		pdf, err := services.NewPDFService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout, logger.Named("pdf"))
		if err != nil {
			a.Close()
			return nil, err
		}
		converter = pdf
	}

	documents := services.NewDocumentService(a.store, proc, converter)
	a.templates = services.NewTemplateService(a.store, proc, source)
	a.archiver = services.NewBatchArchiver(source, documents, logger.Named("batch"))

	return a, nil
}

func (a *app) router(files *handlers.FileCleanupService) *gin.Engine {
	upload := handlers.NewUploadHandler(a.archiver, files, handlers.UploadOptions{
		UploadDir:   a.cfg.Upload.Dir,
		MaxBytes:    a.cfg.Upload.MaxBytes,
		ArchiveName: a.cfg.Archive.Name,
		ArchiveMode: a.cfg.Archive.Mode,
	}, a.logger.Named("upload"))
	templates := handlers.NewTemplateHandler(a.templates, a.logger.Named("templates"))

	return handlers.NewRouter(handlers.RouterConfig{
		AllowAllOrigins: a.cfg.Server.AllowsAllOrigins(),
		AllowOrigins:    a.cfg.Server.AllowOrigins,
		StaticDir:       a.cfg.Server.StaticDir,
	}, upload, templates, a.logger.Named("http"))
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
}
