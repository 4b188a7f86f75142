package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crimson-sun/newscat/internal/classifier"
	"github.com/crimson-sun/newscat/internal/config"
	"github.com/crimson-sun/newscat/internal/featurizer"
	"github.com/crimson-sun/newscat/internal/logging"
	"github.com/crimson-sun/newscat/internal/metrics"
	"github.com/crimson-sun/newscat/internal/pipeline"
	"github.com/crimson-sun/newscat/internal/record"
	"github.com/crimson-sun/newscat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	gin.SetMode(cfg.Server.Mode)

	// Load pretrained artifacts. Any failure here is fatal: the service
	// does not start without a working model.
	feat, err := featurizer.New(cfg.Model.ONNXPath, cfg.Model.VocabPath)
	if err != nil {
		return fmt.Errorf("load featurizer: %w", err)
	}
	defer feat.Close()
	if feat.Dim() != cfg.Model.EmbeddingDim {
		return fmt.Errorf("model embedding dim %d != configured %d", feat.Dim(), cfg.Model.EmbeddingDim)
	}

	clf, err := classifier.Load(cfg.Model.ClassifierPath)
	if err != nil {
		return fmt.Errorf("load classifier: %w", err)
	}

	pipe, err := pipeline.New(feat, clf)
	if err != nil {
		return err
	}
	log.Info("model loaded",
		zap.Int("embedding_dim", feat.Dim()),
		zap.Strings("labels", clf.Labels()))

	// Open the prediction log sink.
	var sink record.Sink
	fileSink, err := record.NewFileSink(cfg.Record.Path)
	if err != nil {
		return err
	}
	sink = fileSink
	if cfg.Record.AsyncBuffer > 0 {
		sink = record.NewAsync(fileSink, record.WithBufferSize(cfg.Record.AsyncBuffer))
	}
	defer sink.Close()

	met := metrics.New()
	srv := server.New(pipe, sink, log, met)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
