// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package model defines the entity types persisted by the indexer and the
// value types shared across component boundaries. Every upstream payload is
// turned into one of these strongly-typed records at the edge of the system;
// nothing downstream of the upstream client sees a loosely-typed blob.
package model

import "time"

// WalletKind identifies which entity table a Wallet row currently describes.
type WalletKind string

// The four entity kinds the Transfer Tracker reconciles ownership for.
const (
	KindDeploy WalletKind = "deploy"
	KindMint   WalletKind = "mint"
	KindBitmap WalletKind = "bitmap"
	KindParcel WalletKind = "parcel"
)

// InscriptionKind is the tagged variant the pipeline classifies every
// inscription preview into. Dispatch over it must be an exhaustive switch;
// there is no string-typed runtime dispatch anywhere else in the system.
type InscriptionKind int

// All classification outcomes of the preview stage (spec.md §4.5 step 3).
const (
	KindUnknown InscriptionKind = iota
	KindBRC420Deploy
	KindBRC420Mint
	KindBitmapClaim
	KindParcelClaim
	KindBinary
	KindJSON
	KindText
)

// Priority buckets the pipeline drains high to low; Skip is never enqueued.
type Priority int

const (
	PriorityHigh   Priority = 1 // brc420-deploy
	PriorityMedium Priority = 2 // brc420-mint, bitmap
	PriorityLow    Priority = 3 // other text
	PrioritySkip   Priority = 4 // binary, unknown
)

// Deploy represents a single BRC-420 token deployment.
type Deploy struct {
	ID              string `gorm:"column:id;primaryKey"`
	SourceID        string `gorm:"column:source_id;uniqueIndex"`
	Name            string `gorm:"column:name"`
	MaxSupply       int64  `gorm:"column:max_supply"`
	PriceBTC        string `gorm:"column:price_btc"` // decimal, 8-place, stored as a fixed-point string
	DeployerAddress string `gorm:"column:deployer_address"`
	BlockHeight     int64  `gorm:"column:block_height"`
	Timestamp       time.Time
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Deploy) TableName() string { return "deploys" }

// Mint represents a single unit minted against a Deploy.
type Mint struct {
	ID            string `gorm:"column:id;primaryKey"`
	DeployID      string `gorm:"column:deploy_id;index"`
	SourceID      string `gorm:"column:source_id"`
	MintAddress   string `gorm:"column:mint_address"`
	TransactionID string `gorm:"column:transaction_id"`
	BlockHeight   int64  `gorm:"column:block_height"`
	Timestamp     time.Time
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Mint) TableName() string { return "mints" }

// Bitmap represents a claim of a block number.
type Bitmap struct {
	InscriptionID string `gorm:"column:inscription_id;primaryKey"`
	BitmapNumber  int64  `gorm:"column:bitmap_number;uniqueIndex"`
	Content       string `gorm:"column:content"`
	Address       string `gorm:"column:address"`
	BlockHeight   int64  `gorm:"column:block_height"`
	Timestamp     time.Time
	Sat           *int64  `gorm:"column:sat"`
	Wallet        string  `gorm:"column:wallet"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Bitmap) TableName() string { return "bitmaps" }

// Parcel represents a sub-claim inside a Bitmap.
type Parcel struct {
	InscriptionID       string `gorm:"column:inscription_id;primaryKey"`
	ParcelNumber        int64  `gorm:"column:parcel_number;uniqueIndex:idx_parcel_bitmap"`
	BitmapNumber        int64  `gorm:"column:bitmap_number;uniqueIndex:idx_parcel_bitmap"`
	BitmapInscriptionID string `gorm:"column:bitmap_inscription_id;index"`
	Content             string `gorm:"column:content"`
	Address             string `gorm:"column:address"`
	BlockHeight         int64  `gorm:"column:block_height"`
	Timestamp           time.Time
	TransactionCount    *int64 `gorm:"column:transaction_count"`
	Wallet              string `gorm:"column:wallet"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Parcel) TableName() string { return "parcels" }

// Wallet is the current holder of an inscription, kept current by the
// Transfer Tracker and the Transfer Tracker alone.
type Wallet struct {
	InscriptionID string     `gorm:"column:inscription_id;primaryKey"`
	Address       string     `gorm:"column:address"`
	Kind          WalletKind `gorm:"column:kind"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Wallet) TableName() string { return "wallets" }

// Block tracks scan progress for one block height.
type Block struct {
	BlockHeight int64      `gorm:"column:block_height;primaryKey"`
	Processed   bool       `gorm:"column:processed"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (Block) TableName() string { return "blocks" }

// ErrorBlock records a block whose processing failed and is scheduled for
// a later retry once current_block reaches RetryAt.
type ErrorBlock struct {
	BlockHeight  int64  `gorm:"column:block_height;primaryKey"`
	ErrorMessage string `gorm:"column:error_message"`
	RetryCount   int    `gorm:"column:retry_count"`
	RetryAt      int64  `gorm:"column:retry_at"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (ErrorBlock) TableName() string { return "error_blocks" }

// FailedInscription records a single inscription that exhausted its retry
// budget (spec.md §4.5 step 5); it is informational only and is never
// retried automatically.
type FailedInscription struct {
	InscriptionID string `gorm:"column:inscription_id;primaryKey"`
	BlockHeight   int64  `gorm:"column:block_height;index"`
	Reason        string `gorm:"column:reason"`
	FailedAt      time.Time
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (FailedInscription) TableName() string { return "failed_inscriptions" }

// BlockStats holds the per-block counters written at the end of C5.
type BlockStats struct {
	BlockHeight        int64 `gorm:"column:block_height;primaryKey"`
	TotalTransactions  int64 `gorm:"column:total_transactions"`
	TotalInscriptions  int64 `gorm:"column:total_inscriptions"`
	BRC420Deploys      int64 `gorm:"column:brc420_deploys"`
	BRC420Mints        int64 `gorm:"column:brc420_mints"`
	Bitmaps            int64 `gorm:"column:bitmaps"`
	Parcels            int64 `gorm:"column:parcels"`
	ProcessedAt        time.Time
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (BlockStats) TableName() string { return "block_stats" }

// AddressHistory is an append-only log of ownership changes, written
// exclusively by the Transfer Tracker.
type AddressHistory struct {
	ID            uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	InscriptionID string `gorm:"column:inscription_id;index"`
	OldAddress    string `gorm:"column:old_address"`
	NewAddress    string `gorm:"column:new_address"`
	BlockHeight   int64  `gorm:"column:block_height"`
	Timestamp     time.Time
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (AddressHistory) TableName() string { return "address_history" }

// BitmapPattern maps a bitmap number to its compact transaction-size-class
// digit string, consumed only by downstream renderers (out of scope here).
type BitmapPattern struct {
	BitmapNumber int64  `gorm:"column:bitmap_number;primaryKey"`
	Pattern      string `gorm:"column:pattern"`
	Synthetic    bool   `gorm:"column:synthetic"`
}

// TableName pins the GORM table name to the schema named in spec.md §3.
func (BitmapPattern) TableName() string { return "bitmap_patterns" }
