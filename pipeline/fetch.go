package pipeline

import (
	"context"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/upstream"
)

// maxPagesPerBlock is a hard safety cap on pagination, so a misbehaving
// upstream that never reports more=false cannot wedge a block forever.
const maxPagesPerBlock = 10000

// maxStalePages is how many pages in a row may add no new id while more
// is still true before pagination gives up on the block.
const maxStalePages = 2

// fetchBlockInscriptionIDs pages through every inscription id inscribed in
// height, deduplicating both within and across pages. A page that only
// repeats ids already seen (a known duplicate-page bug in some Ordinals
// deployments) does not end pagination while more is true, so ids on the
// pages after it are still collected. Pagination ends on an empty page, on
// more=false, or after maxStalePages consecutive pages that add no new id,
// which also stops an upstream that leaves more true on its final page.
func fetchBlockInscriptionIDs(ctx context.Context, ord *upstream.OrdinalsClient, height int64) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	staleRun := 0

	for page := 0; page < maxPagesPerBlock; page++ {
		p, err := ord.InscriptionsInBlock(ctx, height, page)
		if err != nil {
			return nil, err
		}
		if len(p.IDs) == 0 {
			break
		}

		added := 0
		for _, id := range p.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
		}

		if !p.More {
			break
		}
		if added == 0 {
			staleRun++
			if staleRun >= maxStalePages {
				break
			}
		} else {
			staleRun = 0
		}
	}
	return ids, nil
}
