package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moviememo/internal/metrics"
	"github.com/desertthunder/moviememo/internal/server"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/desertthunder/moviememo/internal/tasks"
	"github.com/desertthunder/moviememo/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive movie browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	// Redirect logs to a file to avoid interfering with TUI rendering
	logPath := filepath.Join(os.TempDir(), "moviememo-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	fileLogger := shared.NewLogger(logFile)
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	catalog = r.catalog

	if addr := cmd.String("metrics-addr"); addr != "" {
		router := server.NewBasicRouter()
		router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
		router.Handle(http.MethodGet, "/metrics", metrics.Handler(r.registry))

		srv, err := server.Listen(addr, router, r.logger)
		if err != nil {
			return err
		}
		defer srv.Shutdown(context.Background())
		r.logger.Info("serving metrics", "url", srv.URL("/metrics"))
	}

	// Browsing works signed out, so a missing identity configuration is not fatal.
	if _, err := r.startAccount(ctx); err != nil {
		r.logger.Warn("session unavailable", "error", err)
		r.store.SetLoading(false)
	}

	model := ui.NewModel(ctx, ui.Deps{
		Catalog:     catalog,
		Collections: r.playlists,
		Exporter:    tasks.NewExporter(r.playlists, catalog, r.logger),
		Store:       r.store,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
