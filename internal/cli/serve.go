package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
	"perspective/internal/server"
	"perspective/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the perspective HTTP API",
	Long: `Start the HTTP API. The vector store is loaded at startup when present,
otherwise on the first request; POST /api/reload re-reads it after an ingest.

Examples:
  perspective serve
  perspective serve --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.LoadVectorStore(cfg.IndexPath(), cfg.MetadataPath()); err != nil {
		if !errors.Is(err, domain.ErrStoreNotFound) {
			return err
		}
		logging.Warnf("no vector store at %s yet; run 'perspective ingest'", cfg.IndexPath())
	}

	// A keyword index locked by a running ingest is skipped, not waited on.
	var (
		kw      port.KeywordIndex
		counted usecase.CountedIndex
	)
	if idx, err := openKeyword(cfg); err != nil {
		logging.Warnf("keyword search disabled: %v", err)
	} else {
		defer idx.Close()
		if s, err := eng.Store(); err == nil {
			if err := usecase.SyncKeywordIndex(s, idx); err != nil {
				logging.Warnf("keyword index sync failed: %v", err)
			}
		}
		kw, counted = idx, idx
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	// A nil *journal.DB must not become a non-nil interface.
	var j port.Journal
	if eng.journal != nil {
		j = eng.journal
	}

	srv := server.New(eng.PerspectiveEngine, usecase.NewRetrieveUseCase(eng, kw), j, server.Options{
		Addr:           addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IndexPath:      cfg.IndexPath(),
		MetadataPath:   cfg.MetadataPath(),
		DefaultTopK:    cfg.Perspective.TopK,
		Keyword:        counted,
	})
	return srv.Run(ctx)
}
