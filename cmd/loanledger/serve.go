package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/catalog"
	"loanledger/internal/config"
	"loanledger/internal/ledger"
	"loanledger/internal/membership"
	"loanledger/internal/reports"
	"loanledger/internal/server"
	"loanledger/internal/settings"
	"loanledger/internal/store"
	"loanledger/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCfg := zap.NewProductionConfig()
	logCfg.EncoderConfig.TimeKey = "ts"
	log, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("trace shutdown", zap.Error(err))
			}
		}()
	}

	var (
		bookSnap     store.Collection[catalog.Book]
		memberSnap   store.Collection[membership.Record]
		loanSnap     store.Collection[ledger.Loan]
		settingsSnap store.Document[settings.Settings]
		recorder     audit.Recorder
	)

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		pg := store.NewPostgres(db)
		bookSnap = store.NewPostgresCollection[catalog.Book](pg, "books")
		memberSnap = store.NewPostgresCollection[membership.Record](pg, "members")
		loanSnap = store.NewPostgresCollection[ledger.Loan](pg, "loans")
		settingsSnap = store.NewPostgresDocument[settings.Settings](pg, "settings")
		recorder = audit.NewPostgresRecorder(db)
	default:
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
		bookSnap = store.NewFileCollection[catalog.Book](filepath.Join(cfg.Storage.Dir, "books.json"))
		memberSnap = store.NewFileCollection[membership.Record](filepath.Join(cfg.Storage.Dir, "members.json"))
		loanSnap = store.NewFileCollection[ledger.Loan](filepath.Join(cfg.Storage.Dir, "loans.json"))
		settingsSnap = store.NewFileDocument[settings.Settings](filepath.Join(cfg.Storage.Dir, "settings.json"))
		rec, err := audit.NewSnapshotRecorder(ctx, store.NewFileCollection[audit.Event](filepath.Join(cfg.Storage.Dir, "audit.json")))
		if err != nil {
			return err
		}
		recorder = rec
	}

	settingsSvc, err := settings.NewService(ctx, settingsSnap, recorder, log)
	if err != nil {
		return err
	}
	catalogSvc, err := catalog.NewService(ctx, bookSnap, recorder, log)
	if err != nil {
		return err
	}
	memberSvc, err := membership.NewService(ctx, memberSnap, recorder, log)
	if err != nil {
		return err
	}
	ledgerSvc, err := ledger.NewService(ctx, loanSnap, catalogSvc, memberSvc, settingsSvc, recorder, log)
	if err != nil {
		return err
	}
	reportSvc := reports.NewService(ledgerSvc, catalogSvc, memberSvc)

	srv := server.New(catalogSvc, memberSvc, ledgerSvc, settingsSvc, reportSvc, recorder, log)
	httpSrv := &http.Server{
		Addr:         cfg.API.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpSrv.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
