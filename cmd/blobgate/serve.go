package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blobgate"
	"blobgate/config"
	"blobgate/database"
	"blobgate/filesystem"
	"blobgate/ftpstore"
	blobhttp "blobgate/http"
	"blobgate/s3"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the blobgate HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5709, "HTTP server port")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	backend, err := blobgate.ParseBackend(cfg.Backend.Type)
	if err != nil {
		return fmt.Errorf("parse backend: %w", err)
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database", "type", cfg.Database.Type)

	storage, closeStorage, err := openStorage(backend, cfg, db)
	if err != nil {
		return err
	}
	defer closeStorage()

	svcCfg := blobgate.ServiceConfig{
		Backend:        backend,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	}
	if backend == blobgate.BackendDB {
		svcCfg.UnitOfWork = db.UnitOfWork
	}

	service, err := blobgate.NewBlobService(db.Metadata, storage, svcCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	handlerConfig := blobhttp.HandlerConfig{
		BearerToken: cfg.Auth.Token,
		CORS:        cfg.CORS,
	}

	handler := blobhttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "backend", backend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// openStorage builds the content adapter for the selected backend. The
// returned close func releases adapter resources; it is a no-op for adapters
// without any.
func openStorage(backend blobgate.Backend, cfg *config.Config, db *database.Handle) (blobgate.Storage, func(), error) {
	noop := func() {}

	switch backend {
	case blobgate.BackendFS:
		if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
			return nil, noop, fmt.Errorf("create storage directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Storage.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open storage root: %w", err)
		}
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil

	case blobgate.BackendS3:
		store, err := s3.NewStore(s3.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			SessionToken:   cfg.S3.SessionToken,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Timeout:        time.Duration(cfg.S3.Timeout) * time.Second,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("create s3 store: %w", err)
		}
		return store, noop, nil

	case blobgate.BackendFTP:
		return ftpstore.NewStore(ftpstore.Config{
			Host:     cfg.FTP.Host,
			Port:     cfg.FTP.Port,
			User:     cfg.FTP.User,
			Password: cfg.FTP.Password,
			TLS:      cfg.FTP.TLS,
			BaseDir:  cfg.FTP.BaseDir,
			Timeout:  time.Duration(cfg.FTP.Timeout) * time.Second,
		}), noop, nil

	case blobgate.BackendDB:
		return db.Blobs, noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported backend: %s", backend)
	}
}
