// Package config defines the indexer's configuration surface. Loading a
// Config from flags, environment, or a file is an external concern (spec.md
// §1 "Configuration loading ... process supervision, log sinks" are out of
// scope); this package only names the fields and their defaults so that an
// external loader can bind to them directly.
//
// Field tags follow the teacher's go-flags struct-tag convention even though
// this package does not itself parse anything, so a CLI/env loader built on
// github.com/jessevdk/go-flags can consume a Config value without field
// renaming.
package config

import "time"

// Config enumerates every configuration field named in spec.md §6.
type Config struct {
	StartBlock int64 `long:"start_block" description:"first block to scan"`

	RetryBlockDelay int64 `long:"retry_block_delay" description:"height gap after which error-blocks become eligible for retry" default:"10"`

	UseLocalAPIsOnly bool `long:"use_local_apis_only" description:"disable external fallback"`

	OrdinalsLocalCandidates []string `long:"ordinals_local_candidate" description:"ordered list of local ordinals base URLs"`
	TxLocalCandidates       []string `long:"tx_local_candidate" description:"ordered list of local tx base URLs"`

	OrdinalsExternalFallback string `long:"ordinals_external_fallback" description:"external ordinals base URL"`
	TxExternalFallback       string `long:"tx_external_fallback" description:"external tx base URL"`

	DBPath string `long:"db_path" description:"backing database file location" default:"ordindex.db"`

	CacheTTL               time.Duration `long:"cache_ttl" description:"preview cache entry TTL" default:"5m"`
	CachePressureThreshold float64       `long:"cache_pressure_threshold" description:"heap fraction above which oldest entries are evicted" default:"0.85"`
	CacheEmergencyBytes    uint64        `long:"cache_emergency_bytes" description:"heap ceiling triggering an emergency sweep" default:"3221225472"`

	ConcurrencyMin     int `long:"concurrency_min" default:"1"`
	ConcurrencyMax     int `long:"concurrency_max" default:"50"`
	ConcurrencyInitial int `long:"concurrency_initial" default:"10"`

	BatchMin     int `long:"batch_min" default:"10"`
	BatchMax     int `long:"batch_max" default:"200"`
	BatchInitial int `long:"batch_initial" default:"50"`

	ProcessTimeout time.Duration `long:"process_timeout" description:"per-block safety cap" default:"5m"`

	// ConsecutiveBlockErrorLimit triggers graceful shutdown once exceeded
	// (spec.md §7 "Consecutive block-level errors beyond a configured
	// threshold (default 10) cause graceful shutdown").
	ConsecutiveBlockErrorLimit int `long:"consecutive_block_error_limit" default:"10"`

	// AllowSyntheticPatterns resolves spec.md §9 open question 4: the
	// synthetic transaction-pattern fallback is disabled by default
	// because it is non-deterministic and non-reproducible.
	AllowSyntheticPatterns bool `long:"allow_synthetic_patterns"`

	// ShutdownGracePeriod bounds how long the process waits to finish the
	// current block and drain batched writes after a signal (spec.md §5).
	ShutdownGracePeriod time.Duration `long:"shutdown_grace_period" default:"30s"`
}

// Default returns a Config populated with every default named in spec.md §4
// and §6. Callers that load configuration externally should start from this
// value and override only the fields their source actually sets.
func Default() Config {
	return Config{
		RetryBlockDelay:            10,
		DBPath:                     "ordindex.db",
		CacheTTL:                   5 * time.Minute,
		CachePressureThreshold:     0.85,
		CacheEmergencyBytes:        3 * 1024 * 1024 * 1024,
		ConcurrencyMin:             1,
		ConcurrencyMax:             50,
		ConcurrencyInitial:         10,
		BatchMin:                   10,
		BatchMax:                   200,
		BatchInitial:               50,
		ProcessTimeout:             5 * time.Minute,
		ConsecutiveBlockErrorLimit: 10,
		ShutdownGracePeriod:        30 * time.Second,
	}
}
