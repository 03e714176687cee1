// Package scanner implements the Block Scanner (spec.md §4.7): a single
// cooperative outer loop that advances a persisted block cursor, sweeping
// due error-block retries ahead of the current height, delegating every
// block's actual processing to the pipeline, and recording the outcome.
// All parallelism lives inside the pipeline; the scanner itself never
// processes two blocks concurrently.
package scanner

import (
	"context"

	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/pipeline"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/store"
)

// ErrConsecutiveFailures is returned by Run when the number of
// consecutively failed blocks reaches the configured limit, signalling
// the caller to shut down rather than spin forever against a systemic
// upstream outage.
var ErrConsecutiveFailures = errors.New("scanner: consecutive block error limit reached")

// Scanner owns the current_block cursor and drives ProcessBlock over an
// ever-increasing run of heights, retrying failed blocks on a schedule.
type Scanner struct {
	Pipeline *pipeline.Pipeline
	DB       *store.DB
	Log      btclog.Logger

	// StartBlock is the height to begin at when no block has ever been
	// processed (spec.md §4.7 "... or a configured start").
	StartBlock int64

	// RetryBlockDelay is the height gap after which a failed block
	// becomes eligible for retry again (spec.md §4.7 step 4).
	RetryBlockDelay int64

	// ConsecutiveBlockErrorLimit triggers Run's return once this many
	// blocks in a row have failed (spec.md §7).
	ConsecutiveBlockErrorLimit int

	consecutiveFailures int
}

// Run advances the scanner one block at a time until ctx is cancelled or
// the consecutive-failure limit is reached. It never returns a non-nil
// error for an ordinary shutdown via ctx cancellation.
func (s *Scanner) Run(ctx context.Context) error {
	current, err := s.resumeHeight()
	if err != nil {
		return errors.Wrap(err, "scanner: determine resume height")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.retrySweep(ctx, current); err != nil {
			return err
		}

		processed, err := s.alreadyProcessed(current)
		if err != nil {
			return err
		}
		if processed {
			current++
			continue
		}

		if err := s.processOne(ctx, current); err != nil {
			if errors.Is(err, ErrConsecutiveFailures) {
				return err
			}
			// processOne already recorded the failure as an ErrorBlock;
			// advance past it so the outer loop keeps making progress,
			// the retry sweep will pick it back up once it's due.
		}
		current++
	}
}

// resumeHeight returns the cursor to begin scanning from: one past the
// highest block ever marked processed, or StartBlock if none has been
// (spec.md §4.7, invariant 6).
func (s *Scanner) resumeHeight() (int64, error) {
	highest, ok, err := store.HighestProcessedBlock(s.DB.Root())
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.StartBlock, nil
	}
	return highest + 1, nil
}

// retrySweep reprocesses every ErrorBlock whose retry_at has come due,
// removing it on success and rescheduling it on a further failure
// (spec.md §4.7 step 1).
func (s *Scanner) retrySweep(ctx context.Context, current int64) error {
	due, err := store.FetchDueErrorBlocks(s.DB.Root(), current)
	if err != nil {
		return errors.Wrap(err, "scanner: fetch due error blocks")
	}
	for _, eb := range due {
		if _, err := s.Pipeline.ProcessBlock(ctx, eb.BlockHeight); err != nil {
			if s.Log != nil {
				s.Log.Warnf("scanner: retry of block %d failed again: %s", eb.BlockHeight, err)
			}
			if uerr := store.UpsertErrorBlock(s.DB.Root(), eb.BlockHeight, err.Error(), s.retryDelay()); uerr != nil {
				return uerr
			}
			continue
		}
		if err := store.MarkBlockProcessed(s.DB.Root(), eb.BlockHeight); err != nil {
			return err
		}
		if err := store.RemoveErrorBlock(s.DB.Root(), eb.BlockHeight); err != nil {
			return err
		}
		if s.Log != nil {
			s.Log.Infof("scanner: retry of block %d succeeded", eb.BlockHeight)
		}
	}
	return nil
}

// alreadyProcessed reports whether height has already been marked
// processed, so a re-run skips it rather than repeating the work
// (spec.md §4.7 step 2).
func (s *Scanner) alreadyProcessed(height int64) (bool, error) {
	b, err := store.FetchBlock(s.DB.Root(), height)
	if store.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return b.Processed, nil
}

// processOne drives one block through the pipeline, marking it processed
// on success or scheduling a retry on failure (spec.md §4.7 steps 3-4).
// On ConsecutiveBlockErrorLimit consecutive failures it returns
// ErrConsecutiveFailures.
func (s *Scanner) processOne(ctx context.Context, height int64) error {
	_, err := s.Pipeline.ProcessBlock(ctx, height)
	if err != nil {
		s.consecutiveFailures++
		if s.Log != nil {
			s.Log.Errorf("scanner: block %d failed: %s", height, err)
		}
		if uerr := store.UpsertErrorBlock(s.DB.Root(), height, err.Error(), s.retryDelay()); uerr != nil {
			return uerr
		}
		if s.ConsecutiveBlockErrorLimit > 0 && s.consecutiveFailures >= s.ConsecutiveBlockErrorLimit {
			return ErrConsecutiveFailures
		}
		return err
	}

	s.consecutiveFailures = 0
	return store.MarkBlockProcessed(s.DB.Root(), height)
}

func (s *Scanner) retryDelay() int64 {
	if s.RetryBlockDelay > 0 {
		return s.RetryBlockDelay
	}
	return 10
}
