package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"el-shipper/internal/config"
	"el-shipper/internal/elastic"
	"el-shipper/internal/eventlog"
	"el-shipper/internal/reader"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Configure global logger (timestamped, info level by default).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration file.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Prepare cancellable context that listens to OS signals (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down gracefully…")
		cancel()
	}()

	// Build the storage sink. No connection is made yet; the first call
	// below connects and bootstraps the index template.
	store, err := elastic.NewStore[eventlog.Record](cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("failed to initialise storage sink: %v", err)
	}

	// Ask the backend where to resume from.
	pos, err := store.ReadResumePosition(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("failed to read resume position: %v", err)
	}
	if pos.IsZero() {
		logrus.Infof("Starting from scratch | index=%s", store.Index())
	} else {
		logrus.Infof("Resuming | file=%s offset=%d lgfOffset=%d", pos.FileName, pos.EndPosition, pos.LgfEndPosition)
	}

	// Ship everything the journal directory currently holds.
	rd := reader.New(cfg.Reader)
	if err := rd.Run(ctx, pos, store.Write); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("shipper terminated with error: %v", err)
	}
}
