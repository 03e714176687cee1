package pipeline

import (
	"context"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/util/panics"
)

// filterBatchSize bounds how many inscription metadata lookups are issued
// concurrently during content-type pre-filtering.
const filterBatchSize = 100

var allowedContentTypes = map[string]bool{
	"text/plain":       true,
	"application/json": true,
	"text/json":        true,
}

// filterByContentType fetches each id's metadata in batches of
// filterBatchSize, concurrently within a batch, and keeps only the
// inscriptions whose content type is one the pipeline can classify
// further. Everything else (images, binary formats) is dropped before any
// content is ever fetched.
func (p *Pipeline) filterByContentType(ctx context.Context, ids []string) ([]upstream.Inscription, error) {
	var kept []upstream.Inscription

	for start := 0; start < len(ids); start += filterBatchSize {
		end := start + filterBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		type outcome struct {
			insc upstream.Inscription
			ok   bool
		}
		results := make([]outcome, len(batch))
		errCh := make(chan error, len(batch))
		done := make(chan struct{}, len(batch))

		spawn := panics.GoroutineWrapperFunc(p.Log)
		for i, id := range batch {
			i, id := i, id
			spawn(func() {
				defer func() { done <- struct{}{} }()
				if err := p.Concurrency.Acquire(ctx); err != nil {
					errCh <- err
					return
				}
				defer p.Concurrency.Release()

				insc, err := p.Ordinals.Inscription(ctx, id)
				if err != nil {
					if upstream.IsNotFound(err) {
						return
					}
					errCh <- err
					return
				}
				if allowedContentTypes[baseContentType(insc.ContentType)] {
					results[i] = outcome{insc: insc, ok: true}
				}
			}()
		}

		for range batch {
			<-done
		}
		select {
		case err := <-errCh:
			return nil, err
		default:
		}

		for _, r := range results {
			if r.ok {
				kept = append(kept, r.insc)
			}
		}
	}

	return kept, nil
}
