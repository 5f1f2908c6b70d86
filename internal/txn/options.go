// Package txn implements C6: the transaction core binding the byte
// backend (C1), page tree (C2/C3), record pages (C4), node model (C5),
// epoch tracker and write-lock registry (C7) into read and write
// transactions sharing one cursor contract, plus the commit/abort
// protocol of §4.6.
package txn

import "time"

// Options configures one Resource. It mirrors the subset of the root
// Config (go.mod root package) that the transaction core itself needs;
// the root package translates its public Config into this when Open
// builds a Resource, keeping internal/txn free of an
// import-cycle-inducing dependency on the root package.
type Options struct {
	RecordPageCapacity   int
	Fanout               int
	MaxConcurrentReaders int
	PageCacheSize        int
	WriteLockTimeout     time.Duration

	// CompactEveryNRevisions triggers a background Compact once this
	// many revisions have committed since the last compaction attempt.
	// 0 disables automatic compaction.
	CompactEveryNRevisions uint64
}

// DefaultOptions mirrors Config's defaults.
func DefaultOptions() Options {
	return Options{
		RecordPageCapacity:   1024,
		Fanout:               256,
		MaxConcurrentReaders: 128,
		PageCacheSize:        4096,
		WriteLockTimeout:     5 * time.Second,
	}
}
