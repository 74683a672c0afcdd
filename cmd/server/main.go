package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"DF-APPT/internal/config"
	"DF-APPT/internal/handlers"
	"DF-APPT/internal/logging"
	"DF-APPT/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, strings.Join(strings.Fields(err.Error()), " "))
		os.Exit(1)
	}
}

// cli carries state initialized once for whichever command runs.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "appointments",
		Short: "Generate appointment letters from candidate spreadsheets",
		Long: `appointments fills offer-letter templates with candidate records and
delivers one document per candidate, grouped by role, in a zip archive.

Run without a subcommand to start the HTTP server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE:          c.serve,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  c.serve,
	})

	var input, output string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a letter archive from a spreadsheet or JSON table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.generate(cmd, input, output)
		},
	}
	generateCmd.Flags().StringVarP(&input, "input", "i", "", "Spreadsheet (.xlsx) or JSON table to read")
	generateCmd.Flags().StringVarP(&output, "output", "o", "appointment_letters.zip", "Archive to write")
	_ = generateCmd.MarkFlagRequired("input")
	root.AddCommand(generateCmd)

	root.AddCommand(&cobra.Command{
		Use:   "templates",
		Short: "Print the rule table and each template's placeholders",
		Args:  cobra.NoArgs,
		RunE:  c.listTemplates,
	})

	return root
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if c.cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	files := handlers.NewFileCleanupService(c.cfg.Upload.Dir, c.cfg.Upload.MaxAge, c.logger.Named("cleanup"))

	srv := &http.Server{
		Addr:              ":" + c.cfg.Server.Port,
		Handler:           a.router(files),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.logger.Info("Starting server",
			zap.String("addr", srv.Addr),
			zap.String("environment", c.cfg.Server.Environment),
			zap.String("template_source", c.cfg.Templates.Source),
			zap.String("archive_mode", c.cfg.Archive.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		c.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return files.Run(gCtx)
	})

	if c.cfg.Rules.File != "" && c.cfg.Rules.Watch {
		g.Go(func() error {
			return a.rules.Watch(gCtx)
		})
	}

	return g.Wait()
}

func (c *cli) generate(cmd *cobra.Command, input, output string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := services.LoadRecordsFile(input)
	if err != nil {
		return fmt.Errorf("%s: %w", services.ClientMessage(err), err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}

	result, runErr := a.archiver.Run(ctx, records, services.NewWriterSink(f))
	closeErr := f.Close()

	if runErr != nil {
		_ = os.Remove(output)
		return fmt.Errorf("%s: %w", services.ClientMessage(runErr), runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write %s: %w", output, closeErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d letters (%d bytes) to %s\n", len(result.Entries), result.Bytes, output)
	return nil
}

func (c *cli) listTemplates(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(handlers.TemplatesResponse{
		Templates: a.templates.ListTemplates(cmd.Context()),
	})
}
