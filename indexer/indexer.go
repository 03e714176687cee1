// Package indexer wires every component named in spec.md §2 into one
// explicit context: config, logging, the preview cache, the store, the
// two upstream clients, the adaptive controllers, the validators, the
// inscription pipeline, the transfer tracker, the pattern generator, and
// the block scanner. There is no package-level mutable state anywhere in
// the system; everything a component needs is a field on Indexer or on
// the component itself, constructed once in New and passed down.
package indexer

import (
	"context"

	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/adaptive"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/cache"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/config"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/logger"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/pattern"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/pipeline"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/scanner"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/transfer"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// ErrFatal marks the two process-ending error kinds named in spec.md §7:
// an unrecoverable store failure and a consecutive-block-error shutdown.
var ErrFatal = errors.New("indexer: fatal error")

// Indexer holds every long-lived component, constructed once by New and
// torn down once by Close.
type Indexer struct {
	Config config.Config

	DB          *store.DB
	Cache       *cache.Cache
	Ordinals    *upstream.OrdinalsClient
	Tx          *upstream.TxClient
	Concurrency *adaptive.ConcurrencyManager
	BatchSizer  *adaptive.BatchSizer
	Wallets     *store.WalletBatcher
	Pattern     *pattern.Generator
	Pipeline    *pipeline.Pipeline
	Transfer    *transfer.Tracker
	Scanner     *scanner.Scanner

	log btclog.Logger
}

// New builds every component from cfg and wires them together. The
// returned Indexer is ready to Run; call Close when the process is
// shutting down to release the store, cache sweeper, and concurrency
// manager.
func New(cfg config.Config) (*Indexer, error) {
	log, _ := logger.Get(logger.TagIndexer)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "indexer: open store")
	}

	concurrencyLog, _ := logger.Get(logger.TagAdaptive)
	concurrency := adaptive.NewConcurrencyManager(cfg.ConcurrencyMin, cfg.ConcurrencyMax, cfg.ConcurrencyInitial, concurrencyLog)
	batchSizer := adaptive.NewBatchSizer(cfg.BatchMin, cfg.BatchMax, cfg.BatchInitial)

	previewCache := cache.New(cache.Options{
		TTL:               cfg.CacheTTL,
		PressureThreshold: cfg.CachePressureThreshold,
		EmergencyBytes:    cfg.CacheEmergencyBytes,
		Log:               mustLog(logger.TagCache),
	})

	upstreamLog, _ := logger.Get(logger.TagUpstream)
	ordinals := upstream.NewOrdinalsClient(cfg.OrdinalsLocalCandidates, cfg.OrdinalsExternalFallback, cfg.UseLocalAPIsOnly, concurrency, upstreamLog)
	tx := upstream.NewTxClient(cfg.TxLocalCandidates, cfg.TxExternalFallback, cfg.UseLocalAPIsOnly, concurrency, upstreamLog)

	wallets := store.NewWalletBatcher(db)
	patternGen := &pattern.Generator{Tx: tx, DB: db, AllowSynthetic: cfg.AllowSyntheticPatterns}

	pipelineLog, _ := logger.Get(logger.TagPipeline)
	p := &pipeline.Pipeline{
		Ordinals:    ordinals,
		Tx:          tx,
		Cache:       previewCache,
		DB:          db,
		Concurrency: concurrency,
		BatchSizer:  batchSizer,
		Wallets:     wallets,
		Pattern:     patternGen,
		Log:         pipelineLog,
	}

	transferLog, _ := logger.Get(logger.TagTransfer)
	tracker := &transfer.Tracker{
		Ordinals:    ordinals,
		DB:          db,
		Concurrency: concurrency,
		Wallets:     wallets,
		Log:         transferLog,
	}
	p.AfterBlock = func(ctx context.Context, height int64) error {
		return tracker.Run(ctx, height)
	}

	scannerLog, _ := logger.Get(logger.TagScanner)
	sc := &scanner.Scanner{
		Pipeline:                   p,
		DB:                         db,
		Log:                        scannerLog,
		StartBlock:                 cfg.StartBlock,
		RetryBlockDelay:            cfg.RetryBlockDelay,
		ConsecutiveBlockErrorLimit: cfg.ConsecutiveBlockErrorLimit,
	}

	return &Indexer{
		Config:      cfg,
		DB:          db,
		Cache:       previewCache,
		Ordinals:    ordinals,
		Tx:          tx,
		Concurrency: concurrency,
		BatchSizer:  batchSizer,
		Wallets:     wallets,
		Pattern:     patternGen,
		Pipeline:    p,
		Transfer:    tracker,
		Scanner:     sc,
		log:         log,
	}, nil
}

// Run discovers both upstream collaborators and then runs the scanner
// loop until ctx is cancelled or a fatal error occurs.
func (ix *Indexer) Run(ctx context.Context) error {
	if err := ix.Ordinals.Discover(ctx, "/inscriptions/block/0"); err != nil {
		return errors.Wrap(err, "indexer: discover ordinals upstream")
	}
	if err := ix.Tx.Discover(ctx, "/block-height/0"); err != nil {
		return errors.Wrap(err, "indexer: discover tx upstream")
	}

	if ix.log != nil {
		ix.log.Infof("indexer: starting scan at block %d", ix.Config.StartBlock)
	}

	if err := ix.Scanner.Run(ctx); err != nil {
		if ix.log != nil {
			ix.log.Criticalf("indexer: scanner stopped: %s", err)
		}
		return errors.Wrap(ErrFatal, err.Error())
	}
	return nil
}

// Close flushes any buffered writes and releases every long-lived
// component's resources. It is safe to call once, after Run returns.
func (ix *Indexer) Close() error {
	if err := ix.Wallets.Flush(); err != nil && ix.log != nil {
		ix.log.Errorf("indexer: final wallet flush failed: %s", err)
	}
	ix.Concurrency.Close()
	ix.Cache.Close()
	return ix.DB.Close()
}

func mustLog(tag string) btclog.Logger {
	l, _ := logger.Get(tag)
	return l
}
