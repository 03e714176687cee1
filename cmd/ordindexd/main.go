// Command ordindexd runs the BRC-420/Bitmap indexer as a long-lived
// daemon: it parses configuration, wires an indexer.Indexer, and drives
// its scanner loop until an interrupt signal requests a graceful
// shutdown (spec.md §5 "Cancellation").
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/config"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/indexer"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/logger"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/util/panics"
)

func main() {
	cfg := config.Default()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.InitLogRotators("ordindexd.log")
	log, _ := logger.Get(logger.TagIndexer)
	spawn := panics.GoroutineWrapperFunc(log)

	ix, err := indexer.New(cfg)
	if err != nil {
		log.Criticalf("failed to initialize indexer: %+v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	spawn(func() {
		sig := <-sigCh
		log.Warnf("received signal %s, shutting down", sig)
		cancel()

		time.AfterFunc(cfg.ShutdownGracePeriod, func() {
			panics.Exit(log, "shutdown grace period exceeded")
		})
	})

	runErr := ix.Run(ctx)
	if closeErr := ix.Close(); closeErr != nil {
		log.Errorf("error closing indexer: %+v", closeErr)
	}

	if runErr != nil {
		log.Criticalf("indexer exited with error: %+v", runErr)
		os.Exit(1)
	}
	log.Infof("ordindexd shut down cleanly")
}
