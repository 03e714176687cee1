package upstream

import (
	"context"
	"fmt"

	"github.com/btcsuite/btclog"
)

// OrdinalsClient wraps Client with the typed calls described in spec.md
// §6 for the Ordinals HTTP service.
type OrdinalsClient struct {
	*Client
}

// NewOrdinalsClient builds an OrdinalsClient over the given candidate base
// URLs. Call Discover once at startup before issuing real calls.
func NewOrdinalsClient(localCandidates []string, externalFallback string, useLocalOnly bool, recorder Recorder, log btclog.Logger) *OrdinalsClient {
	return &OrdinalsClient{Client: NewClient(localCandidates, externalFallback, useLocalOnly, recorder, log)}
}

// InscriptionsInBlock calls GET /inscriptions/block/{height}[/{page}].
// Page 0 uses the path-parameter-free first-page endpoint; subsequent
// pages use the path-parameter form, since spec.md §6 notes the
// query-parameter form is known to be buggy.
func (c *OrdinalsClient) InscriptionsInBlock(ctx context.Context, height int64, page int) (InscriptionsInBlockPage, error) {
	var path string
	if page == 0 {
		path = fmt.Sprintf("/inscriptions/block/%d", height)
	} else {
		path = fmt.Sprintf("/inscriptions/block/%d/%d", height, page)
	}
	body, err := c.get(ctx, path, "application/json")
	if err != nil {
		return InscriptionsInBlockPage{}, err
	}
	var out InscriptionsInBlockPage
	if err := decodeJSON(body, &out); err != nil {
		return InscriptionsInBlockPage{}, err
	}
	return out, nil
}

// Inscription calls GET /inscription/{id}.
func (c *OrdinalsClient) Inscription(ctx context.Context, id string) (Inscription, error) {
	body, err := c.get(ctx, "/inscription/"+id, "application/json")
	if err != nil {
		return Inscription{}, err
	}
	var out Inscription
	if err := decodeJSON(body, &out); err != nil {
		return Inscription{}, err
	}
	return out, nil
}

// Content calls GET /content/{id}, returning the full body.
func (c *OrdinalsClient) Content(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, "/content/"+id, "text/plain")
}

// ContentPreview fetches at most n bytes of an inscription's content,
// preferring a ranged request and falling back to a full fetch truncated
// client-side (spec.md §4.5 step 3: "fetch a 50-byte prefix of content").
func (c *OrdinalsClient) ContentPreview(ctx context.Context, id string, n int64) ([]byte, error) {
	body, err := c.getRange(ctx, "/content/"+id, 0, n-1)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		// Range unsupported or transient: fall back to a full fetch.
		full, fullErr := c.Content(ctx, id)
		if fullErr != nil {
			return nil, fullErr
		}
		body = full
	}
	if int64(len(body)) > n {
		body = body[:n]
	}
	return body, nil
}

// Children calls GET /children/{id}.
func (c *OrdinalsClient) Children(ctx context.Context, id string) (Children, error) {
	body, err := c.get(ctx, "/children/"+id, "application/json")
	if err != nil {
		return Children{}, err
	}
	var out Children
	if err := decodeJSON(body, &out); err != nil {
		return Children{}, err
	}
	return out, nil
}
