// Package pipeline implements the per-block Inscription Pipeline (spec.md
// §4.5): fetching every inscription id in a block, pre-filtering by
// content type, classifying previews into a claim kind, and dispatching
// each candidate to its protocol validator under the adaptive concurrency
// limit, with a bounded retry on transient failures.
package pipeline

import (
	"context"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/adaptive"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/cache"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/pattern"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/util/panics"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/validators"
)

// itemRetryAttempts bounds how many times a single inscription is
// retried on a transient validator error before it is recorded as a
// failed inscription and the pipeline moves on.
const itemRetryAttempts = 3

// Pipeline wires every collaborator C5 needs: the upstream clients, the
// preview cache, the store, the adaptive controllers, and the pattern
// generator a committed bitmap schedules.
type Pipeline struct {
	Ordinals    *upstream.OrdinalsClient
	Tx          *upstream.TxClient
	Cache       *cache.Cache
	DB          *store.DB
	Concurrency *adaptive.ConcurrencyManager
	BatchSizer  *adaptive.BatchSizer
	Wallets     *store.WalletBatcher
	Pattern     *pattern.Generator
	Log         btclog.Logger

	// ContentPreviewBytes bounds the preview fetched for classification.
	ContentPreviewBytes int64

	// AfterBlock, if set, is invoked once a block's inscriptions have all
	// been processed and its wallet batch flushed, before BlockStats is
	// written — the Transfer Tracker's reconciliation hook.
	AfterBlock func(ctx context.Context, height int64) error
}

// classifiedItem is one filtered inscription paired with its classified
// kind and dispatch priority.
type classifiedItem struct {
	insc     upstream.Inscription
	preview  []byte
	kind     model.InscriptionKind
	priority model.Priority
}

// counts accumulates the per-block totals written to BlockStats.
type counts struct {
	deploys, mints, bitmaps, parcels int64
}

// ProcessBlock runs every stage of C5 for one block height and returns its
// accumulated statistics. A per-inscription failure that exhausts its
// retries does not fail the block; an error fetching or filtering the
// block's inscription list does.
func (p *Pipeline) ProcessBlock(ctx context.Context, height int64) (*model.BlockStats, error) {
	p.logState(height, StateFetching)
	ids, err := fetchBlockInscriptionIDs(ctx, p.Ordinals, height)
	if err != nil {
		p.logState(height, StateFailed)
		return nil, errors.Wrapf(err, "pipeline: fetch inscriptions for block %d", height)
	}

	p.logState(height, StateFiltering)
	filtered, err := p.filterByContentType(ctx, ids)
	if err != nil {
		p.logState(height, StateFailed)
		return nil, errors.Wrapf(err, "pipeline: filter inscriptions for block %d", height)
	}

	p.logState(height, StateClassifying)
	queues := p.classify(ctx, filtered)

	p.logState(height, StateProcessing)
	c, err := p.drain(ctx, height, queues)
	if err != nil {
		p.logState(height, StateFailed)
		return nil, err
	}

	if err := p.Wallets.Flush(); err != nil {
		p.logState(height, StateFailed)
		return nil, errors.Wrap(err, "pipeline: flush wallet batch")
	}

	p.logState(height, StateReconciling)
	if p.AfterBlock != nil {
		if err := p.AfterBlock(ctx, height); err != nil {
			p.logState(height, StateFailed)
			return nil, errors.Wrap(err, "pipeline: post-block reconciliation")
		}
	}

	txCount, err := p.Tx.TransactionCountAtHeight(ctx, height)
	if err != nil {
		p.logState(height, StateFailed)
		return nil, errors.Wrapf(err, "pipeline: transaction count for block %d", height)
	}
	var totalTransactions int64
	if txCount != nil {
		totalTransactions = *txCount
	}

	stats := &model.BlockStats{
		BlockHeight:       height,
		TotalTransactions: totalTransactions,
		TotalInscriptions: int64(len(ids)),
		BRC420Deploys:     c.deploys,
		BRC420Mints:       c.mints,
		Bitmaps:           c.bitmaps,
		Parcels:           c.parcels,
		ProcessedAt:       time.Now(),
	}
	if err := store.WriteBlockStats(p.DB.Root(), stats); err != nil {
		p.logState(height, StateFailed)
		return nil, err
	}

	p.logState(height, StateDone)
	return stats, nil
}

// classify fetches a classification preview for each filtered inscription
// and buckets it into the priority it is classified into. Skip-priority
// inscriptions are not enqueued at all.
func (p *Pipeline) classify(ctx context.Context, filtered []upstream.Inscription) map[model.Priority][]classifiedItem {
	queues := map[model.Priority][]classifiedItem{
		model.PriorityHigh:   nil,
		model.PriorityMedium: nil,
		model.PriorityLow:    nil,
	}
	for _, insc := range filtered {
		preview, err := p.previewFor(ctx, insc)
		if err != nil {
			if p.Log != nil {
				p.Log.Warnf("pipeline: preview fetch failed for %s: %s", insc.ID, err)
			}
			continue
		}
		kind := classify(preview, insc.ContentType)
		prio := priorityOf(kind)
		if prio == model.PrioritySkip {
			continue
		}
		queues[prio] = append(queues[prio], classifiedItem{insc: insc, preview: preview, kind: kind, priority: prio})
	}
	return queues
}

// previewFor returns the cached classification preview for insc, fetching
// and caching it on a miss.
func (p *Pipeline) previewFor(ctx context.Context, insc upstream.Inscription) ([]byte, error) {
	if cached, ok := p.Cache.Get(cache.NamespacePreview, insc.ID); ok {
		return cached.([]byte), nil
	}
	body, err := p.Ordinals.ContentPreview(ctx, insc.ID, p.previewBytes())
	if err != nil {
		return nil, err
	}
	p.Cache.Set(cache.NamespacePreview, insc.ID, body)
	return body, nil
}

func (p *Pipeline) previewBytes() int64 {
	if p.ContentPreviewBytes > 0 {
		return p.ContentPreviewBytes
	}
	return 50
}

// drain processes every queued item, high priority to low, under the
// adaptive concurrency limit, and reports the result to the batch sizer.
func (p *Pipeline) drain(ctx context.Context, height int64, queues map[model.Priority][]classifiedItem) (counts, error) {
	var total counts
	for _, prio := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		items := queues[prio]
		batchSize := p.BatchSizer.Size()

		for start := 0; start < len(items); start += batchSize {
			end := start + batchSize
			if end > len(items) {
				end = len(items)
			}
			batchOK, batchCounts, err := p.drainBatch(ctx, height, items[start:end])
			if err != nil {
				return total, err
			}
			total.deploys += batchCounts.deploys
			total.mints += batchCounts.mints
			total.bitmaps += batchCounts.bitmaps
			total.parcels += batchCounts.parcels
			p.BatchSizer.RecordBatchResult(batchOK)
		}
	}
	return total, nil
}

func (p *Pipeline) drainBatch(ctx context.Context, height int64, items []classifiedItem) (bool, counts, error) {
	type result struct {
		c   counts
		err error
	}
	results := make(chan result, len(items))

	spawn := panics.GoroutineWrapperFunc(p.Log)
	for _, item := range items {
		item := item
		spawn(func() {
			if err := p.Concurrency.Acquire(ctx); err != nil {
				results <- result{err: err}
				return
			}
			defer p.Concurrency.Release()

			start := time.Now()
			c, err := p.processItemWithRetry(ctx, height, item)
			p.Concurrency.RecordResult(err == nil, time.Since(start))
			results <- result{c: c, err: err}
		})
	}

	var total counts
	ok := true
	for range items {
		r := <-results
		if r.err != nil {
			ok = false
			continue
		}
		total.deploys += r.c.deploys
		total.mints += r.c.mints
		total.bitmaps += r.c.bitmaps
		total.parcels += r.c.parcels
	}
	return ok, total, nil
}

// processItemWithRetry retries a transient validator failure up to
// itemRetryAttempts times with exponential backoff before giving up and
// recording the inscription as failed.
func (p *Pipeline) processItemWithRetry(ctx context.Context, height int64, item classifiedItem) (counts, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, itemRetryAttempts), ctx)

	var c counts
	op := func() error {
		var err error
		c, err = p.processItem(ctx, item)
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		if recordErr := store.InsertFailedInscription(p.DB.Root(), &model.FailedInscription{
			InscriptionID: item.insc.ID,
			BlockHeight:   height,
			Reason:        err.Error(),
		}); recordErr != nil && p.Log != nil {
			p.Log.Errorf("pipeline: failed to record failed inscription %s: %s", item.insc.ID, recordErr)
		}
		return counts{}, err
	}
	return c, nil
}

// processItem dispatches one classified item to its validator. Validator
// rejections (nil result, nil error) are not counted as failures.
func (p *Pipeline) processItem(ctx context.Context, item classifiedItem) (counts, error) {
	deps := validators.Deps{Ordinals: p.Ordinals, Tx: p.Tx, DB: p.DB, Wallets: p.Wallets}

	switch item.kind {
	case model.KindBRC420Deploy:
		content, err := p.Ordinals.Content(ctx, item.insc.ID)
		if err != nil {
			return counts{}, err
		}
		payload, err := validators.ParseDeployPayload(content)
		if err != nil {
			return counts{}, nil // malformed payload: reject, don't retry
		}
		d, err := validators.ValidateDeploy(ctx, deps, item.insc, payload)
		if err != nil {
			return counts{}, err
		}
		if d == nil {
			return counts{}, nil
		}
		return counts{deploys: 1}, nil

	case model.KindBRC420Mint:
		deployID, err := validators.ParseMintReference(item.preview)
		if err != nil {
			return counts{}, nil
		}
		m, err := validators.ValidateMint(ctx, deps, item.insc, deployID)
		if err != nil {
			return counts{}, err
		}
		if m == nil {
			return counts{}, nil
		}
		return counts{mints: 1}, nil

	case model.KindBitmapClaim:
		bitmapNumber, err := validators.ParseBitmapNumber(item.preview)
		if err != nil {
			return counts{}, nil
		}
		b, err := validators.ValidateBitmap(deps, item.insc, bitmapNumber)
		if err != nil {
			return counts{}, err
		}
		if b == nil {
			return counts{}, nil
		}
		if p.Pattern != nil {
			if err := p.Pattern.Generate(ctx, bitmapNumber, b.BlockHeight); err != nil && p.Log != nil {
				p.Log.Warnf("pipeline: pattern generation failed for bitmap %d: %s", bitmapNumber, err)
			}
		}
		return counts{bitmaps: 1}, nil

	case model.KindParcelClaim:
		parcelNumber, bitmapNumber, err := validators.ParseParcelContent(item.preview)
		if err != nil {
			return counts{}, nil
		}
		_, outcome, err := validators.ValidateParcel(ctx, deps, item.insc, parcelNumber, bitmapNumber)
		if err != nil {
			return counts{}, err
		}
		if outcome == store.ParcelSkipped {
			return counts{}, nil
		}
		return counts{parcels: 1}, nil

	default:
		return counts{}, nil
	}
}

func (p *Pipeline) logState(height int64, s BlockState) {
	if p.Log != nil {
		p.Log.Debugf("block %d: %s", height, s)
	}
}
