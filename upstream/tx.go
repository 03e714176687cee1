package upstream

import (
	"context"
	"strconv"

	"github.com/btcsuite/btclog"
)

// TxClient wraps Client with the typed calls described in spec.md §6 for
// the Address/Tx HTTP service.
type TxClient struct {
	*Client
}

// NewTxClient builds a TxClient over the given candidate base URLs. Call
// Discover once at startup before issuing real calls.
func NewTxClient(localCandidates []string, externalFallback string, useLocalOnly bool, recorder Recorder, log btclog.Logger) *TxClient {
	return &TxClient{Client: NewClient(localCandidates, externalFallback, useLocalOnly, recorder, log)}
}

// Tx calls GET /tx/{txid}.
func (c *TxClient) Tx(ctx context.Context, txid string) (Tx, error) {
	body, err := c.get(ctx, "/tx/"+txid, "application/json")
	if err != nil {
		return Tx{}, err
	}
	var out Tx
	if err := decodeJSON(body, &out); err != nil {
		return Tx{}, err
	}
	out.TxID = txid
	return out, nil
}

// BlockHeightToHash calls GET /block-height/{h}, a text/plain response.
func (c *TxClient) BlockHeightToHash(ctx context.Context, height int64) (string, error) {
	body, err := c.get(ctx, "/block-height/"+strconv.FormatInt(height, 10), "text/plain")
	if err != nil {
		return "", err
	}
	return string(trimNewline(body)), nil
}

// Block calls GET /block/{hash}.
func (c *TxClient) Block(ctx context.Context, hash string) (Block, error) {
	body, err := c.get(ctx, "/block/"+hash, "application/json")
	if err != nil {
		return Block{}, err
	}
	var out Block
	if err := decodeJSON(body, &out); err != nil {
		return Block{}, err
	}
	out.Hash = hash
	return out, nil
}

// TransactionCountAtHeight is a convenience call combining
// BlockHeightToHash and Block, used by the parcel validator's range check
// (spec.md §4.6.4 step 3). It returns a nil count, not zero, when the
// upstream block response omits tx_count.
func (c *TxClient) TransactionCountAtHeight(ctx context.Context, height int64) (*int64, error) {
	hash, err := c.BlockHeightToHash(ctx, height)
	if err != nil {
		return nil, err
	}
	block, err := c.Block(ctx, hash)
	if err != nil {
		return nil, err
	}
	return block.TxCount, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
