package arbor

import (
	"go.uber.org/zap"

	arborerr "github.com/arbordb/arbor/errors"
	"github.com/arbordb/arbor/internal/diff"
	"github.com/arbordb/arbor/internal/index"
	"github.com/arbordb/arbor/internal/iostore"
	"github.com/arbordb/arbor/internal/node"
	"github.com/arbordb/arbor/internal/rbtree"
	"github.com/arbordb/arbor/internal/txn"
)

// Resource is the single entry point a caller outside the core uses
// (renamed from spec.md §6's "ResourceSession"): one versioned,
// hierarchical document backed by one storage directory.
type Resource struct {
	cfg    Config
	logger *zap.Logger
	core   *txn.Resource

	backends map[IndexDef]index.Backend
}

// IndexDef names one secondary index a Resource maintains: which kind
// (PATH/CAS/NAME) and which backend implementation (§4.10, §6
// "indexBackendType").
type IndexDef struct {
	Kind    index.Kind
	Backend IndexBackendType
}

// Open creates or reopens a Resource at cfg.Directory, wiring the byte
// handler pipeline, the transaction core, and (if configured) an
// initial PATH index listener, per spec.md §6.
func Open(opts ...Option) (*Resource, error) {
	cfg := buildConfig(opts...)
	if cfg.Directory == "" {
		return nil, arborerr.New(arborerr.CodeInvalidState, "Config.Directory is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipelineNames := make([]string, len(cfg.ByteHandlePipeline))
	for i, h := range cfg.ByteHandlePipeline {
		pipelineNames[i] = string(h)
	}
	pipeline, err := iostore.NewPipeline(pipelineNames, cfg.AESKey)
	if err != nil {
		return nil, err
	}

	var storage *iostore.Storage
	switch cfg.StorageBackend {
	case BackendFile, BackendFileChannel:
		storage, err = iostore.Open(cfg.Directory, pipeline, logger)
		if err != nil {
			return nil, err
		}
	default:
		// internal/txn.Resource is built against iostore.Storage's
		// Reader/Writer/sidecar-slot surface; the memoryMapped and
		// ioUring backends currently expose a different, self-contained
		// API (MMapStorage.WritePage/ReadPage with no separate
		// Reader/Writer split) that has not been adapted to satisfy it.
		return nil, arborerr.New(arborerr.CodeUnsupportedOperation, "storage backend not wired into the transaction core").
			WithDetail("backend", string(cfg.StorageBackend))
	}

	topts := txn.Options{
		RecordPageCapacity:   cfg.RecordPageCapacity,
		Fanout:               256,
		MaxConcurrentReaders: cfg.MaxConcurrentReaders,
		PageCacheSize:        cfg.Buffers.PageCacheSize,
		WriteLockTimeout:     cfg.WriteLockTimeout,

		CompactEveryNRevisions: cfg.CompactEveryNRevisions,
	}
	core := txn.NewResource(storage, topts, logger)

	r := &Resource{
		cfg:      cfg,
		logger:   logger,
		core:     core,
		backends: make(map[IndexDef]index.Backend),
	}

	if cfg.WithPathSummary {
		r.EnsureIndex(IndexDef{Kind: index.KindPath, Backend: cfg.IndexBackendType})
	}

	return r, nil
}

// EnsureIndex registers (idempotently) a listener maintaining def's
// index live in memory, so every subsequent write transaction's
// structural changes flow into it (§4.10). Returns the backend so a
// caller can pass it straight to OpenIndex.
func (r *Resource) EnsureIndex(def IndexDef) index.Backend {
	if b, ok := r.backends[def]; ok {
		return b
	}
	var backend index.Backend
	if def.Backend == IndexBackendHOT {
		backend = index.NewHOTBackend()
	} else {
		backend = index.NewRBTreeBackend()
	}

	var keyOf index.KeyFunc
	switch def.Kind {
	case index.KindPath:
		keyOf = index.PathKeyOf
	case index.KindName:
		keyOf = index.NameKeyOf
	case index.KindCAS:
		keyOf = index.CASKeyOf(func(n *node.Node) (int64, bool) {
			if n.ParentKey == node.NoKey {
				return 0, false
			}
			return n.ParentKey, true
		})
	}

	r.core.AddListener(index.NewListener(def.Kind, backend, nil, keyOf))
	r.backends[def] = backend
	return backend
}

// BeginNodeReadOnlyTrx pins revision (latest if negative) and returns a
// read-only cursor (§6 "begin_node_read_only_trx(revision?) ->
// ReadCursor").
func (r *Resource) BeginNodeReadOnlyTrx(revision int64) (*ReadTrx, error) {
	rt, err := r.core.BeginReadOnly(revision)
	if err != nil {
		return nil, err
	}
	return &ReadTrx{txn: rt}, nil
}

// BeginNodeWriteTrx acquires the resource's single write permit and
// returns a write cursor overlaying the latest committed revision (§6
// "begin_node_write_trx() -> WriteCursor").
func (r *Resource) BeginNodeWriteTrx() (*WriteTrx, error) {
	wt, err := r.core.BeginWrite()
	if err != nil {
		return nil, err
	}
	return &WriteTrx{txn: wt}, nil
}

// OpenIndex returns every NodeReferences set in def's index whose key
// passes filter, in ascending key order (§6 "open_index(indexDef,
// filter) -> Iterator<NodeReferences>"). filter may be nil to visit
// every key.
func (r *Resource) OpenIndex(def IndexDef, filter func(key []byte) bool) []rbtree.NodeReferences {
	backend, ok := r.backends[def]
	if !ok {
		return nil
	}
	var out []rbtree.NodeReferences
	backend.All(func(key []byte, refs rbtree.NodeReferences) bool {
		if filter == nil || filter(key) {
			out = append(out, refs)
		}
		return true
	})
	return out
}

// JSONDiff serializes the structural diff between two revisions as
// JSON (§6 "JsonDiffSerializer::serialize(emitFromDiffAlgorithm: bool)
// -> String"). emitFromDiffAlgorithm selects whether SAME/SAMEHASH
// tuples are included (true) or only the actionable changes (false).
func (r *Resource) JSONDiff(oldRevision, newRevision int64, emitFromDiffAlgorithm bool) (string, error) {
	oldTrx, err := r.BeginNodeReadOnlyTrx(oldRevision)
	if err != nil {
		return "", err
	}
	defer oldTrx.Close()
	newTrx, err := r.BeginNodeReadOnlyTrx(newRevision)
	if err != nil {
		return "", err
	}
	defer newTrx.Close()

	oldTree := &cursorDiffTree{trx: oldTrx}
	newTree := &cursorDiffTree{trx: newTrx}

	var tuples []diff.Tuple
	diff.Diff(oldTree, newTree, func(t diff.Tuple) { tuples = append(tuples, t) })

	serializer := diff.NewJSONSerializer(tuples, oldTree, newTree)
	return serializer.Serialize(emitFromDiffAlgorithm)
}

// Close releases the resource's underlying storage handles.
func (r *Resource) Close() error {
	return r.core.Close()
}
