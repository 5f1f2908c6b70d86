package txn

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	arborerr "github.com/arbordb/arbor/errors"
	"github.com/arbordb/arbor/internal/epoch"
	"github.com/arbordb/arbor/internal/index"
	"github.com/arbordb/arbor/internal/iostore"
	"github.com/arbordb/arbor/internal/page"
	"github.com/arbordb/arbor/internal/record"
	"github.com/arbordb/arbor/internal/revindex"
)

// Resource is the engine-level handle for one versioned resource: the
// byte backend, the epoch tracker and write permit, the in-memory
// revision history, and the shared page cache every transaction reads
// through. The root package's Resource is a thin wrapper around
// one of these.
type Resource struct {
	storage *iostore.Storage
	opts    Options
	logger  *zap.Logger

	epochs    *epoch.Tracker
	writeLock *epoch.WriteLock
	revIndex  *revindex.Index
	shared    *pageCache

	mu        sync.RWMutex
	revisions []*page.RevisionRootPage // index == revision number

	compactionMu             sync.Mutex
	revisionsSinceCompaction uint64

	listenerMu sync.Mutex
	listeners  []*index.Listener
}

// NewResource opens (or creates) storage at dir and wires up a fresh
// genesis revision (revision 0, empty tree), matching the "a reader
// pinned at revision r observes exactly the tree committed at r"
// guarantee even before any writer has committed anything (§5).
func NewResource(storage *iostore.Storage, opts Options, logger *zap.Logger) *Resource {
	if opts.Fanout == 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	genesis := page.NewRevisionRootPage(0, 0, nil)
	revIndex := revindex.New()
	revIndex.Append(genesis.TimestampMillis, 0)
	return &Resource{
		storage:   storage,
		opts:      opts,
		logger:    logger,
		epochs:    epoch.New(opts.MaxConcurrentReaders),
		writeLock: epoch.NewWriteLock(),
		revIndex:  revIndex,
		shared:    newPageCache(opts.PageCacheSize),
		revisions: []*page.RevisionRootPage{genesis},
	}
}

// AddListener registers a secondary-index listener so every committed
// write transaction's structural changes flow into it (§4.10).
func (r *Resource) AddListener(l *index.Listener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Resource) listenersSnapshot() []*index.Listener {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	out := make([]*index.Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// Close releases the underlying storage handles.
func (r *Resource) Close() error {
	return r.storage.Close()
}

// LatestRevision returns the highest committed revision number.
func (r *Resource) LatestRevision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.revisions) - 1)
}

func (r *Resource) revisionRoot(revision uint64) (*page.RevisionRootPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(revision) >= len(r.revisions) {
		return nil, arborerr.New(arborerr.CodeOutOfRange, "revision does not exist").
			WithDetail("revision", revision).WithDetail("latest", len(r.revisions)-1)
	}
	return r.revisions[revision], nil
}

func (r *Resource) pageLoader() page.Loader {
	return pageLoaderFor(r.storage, r.opts.Fanout)
}

// pageLoaderFor builds a page.Loader reading indirect pages out of
// storage, for any Storage instance — not just the resource's live one.
// Compaction needs a second loader over the fresh storage it is
// building, which resolve/Set must be able to read back mid-build the
// same way the live commit path does.
func pageLoaderFor(storage *iostore.Storage, fanout int) page.Loader {
	return func(ref *page.Ref) (*page.IndirectPage, error) {
		if ref == nil || ref.Unresolved() {
			return nil, nil
		}
		reader := storage.CreateReader()
		defer reader.Close()
		raw, err := reader.ReadPage(iostore.PageRef{Offset: ref.Offset, Hash: ref.Hash})
		if err != nil {
			return nil, err
		}
		return page.DecodeIndirectPage(raw, fanout)
	}
}

func (r *Resource) pageAllocator(writer iostore.Writer) page.Allocator {
	return func(p *page.IndirectPage) (*page.Ref, error) {
		encoded := page.EncodeIndirectPage(nil, p)
		ref, err := writer.WritePage(iostore.KindOrdinary, encoded)
		if err != nil {
			return nil, err
		}
		return &page.Ref{Offset: ref.Offset, Hash: ref.Hash}, nil
	}
}

// fetchRecordPage resolves pageKey against root's record subtree and
// decodes the page it points to, or returns a fresh empty page if the
// key was never written (an unresolved leaf is not an error: it means
// "nothing stored here yet").
func (r *Resource) fetchRecordPage(root *page.RevisionRootPage, pageKey int64, cache *pageCache) (*record.Page, error) {
	ref, err := page.Resolve(root.Subtrees[page.SubtreeRecord], uint64(pageKey), r.opts.Fanout, r.pageLoader())
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.Unresolved() {
		return record.New(r.opts.RecordPageCapacity, record.IndexTypeRecord, root.RevisionNumber), nil
	}
	if cached, ok := cache.get(ref.Offset); ok {
		return cached, nil
	}
	if cached, ok := r.shared.get(ref.Offset); ok {
		cache.put(ref.Offset, cached)
		return cached, nil
	}
	reader := r.storage.CreateReader()
	defer reader.Close()
	raw, err := reader.ReadPage(iostore.PageRef{Offset: ref.Offset, Hash: ref.Hash})
	if err != nil {
		return nil, err
	}
	p, err := record.Decode(raw)
	if err != nil {
		return nil, err
	}
	cache.put(ref.Offset, p)
	r.shared.put(ref.Offset, p)
	return p, nil
}

// BeginReadOnly pins revision (the latest committed revision if
// negative) and registers an epoch ticket for it
// (§6 "begin_node_read_only_trx(revision?)").
func (r *Resource) BeginReadOnly(revision int64) (*ReadTxn, error) {
	rev := uint64(revision)
	if revision < 0 {
		rev = r.LatestRevision()
	}
	root, err := r.revisionRoot(rev)
	if err != nil {
		return nil, err
	}
	ticket, err := r.epochs.Register(rev)
	if err != nil {
		return nil, err
	}
	return &ReadTxn{
		resource: r,
		revision: rev,
		root:     root,
		ticket:   ticket,
		local:    newPageCache(256),
	}, nil
}

// BeginWrite acquires the per-resource write permit and opens a write
// transaction overlaying the latest committed revision
// (§6 "begin_node_write_trx()").
func (r *Resource) BeginWrite() (*WriteTxn, error) {
	if err := r.writeLock.Acquire(r.opts.WriteLockTimeout); err != nil {
		r.logger.Warn("write permit acquisition timed out", zap.Duration("timeout", r.opts.WriteLockTimeout))
		return nil, err
	}
	baseRevision := r.LatestRevision()
	baseRoot, err := r.revisionRoot(baseRevision)
	if err != nil {
		r.writeLock.Release()
		return nil, err
	}
	ticket, err := r.epochs.Register(baseRevision)
	if err != nil {
		r.writeLock.Release()
		return nil, err
	}

	writer := r.storage.CreateWriter()
	newRoot := page.NewRevisionRootPage(baseRevision+1, 0, baseRoot)

	return &WriteTxn{
		resource:       r,
		baseRevision:   baseRevision,
		baseRoot:       baseRoot,
		newRoot:        newRoot,
		ticket:         ticket,
		local:          newPageCache(256),
		writer:         writer,
		priorEndOffset: writer.CurrentEndOffset(),
		redoLog:        make(map[int64]*record.Page),
	}, nil
}

// CommitInfo describes a completed commit (§6 "commit() -> RevisionInfo").
type CommitInfo struct {
	Revision        uint64
	TimestampMillis int64
}

// commit runs the seven-step protocol of §4.6. Called by WriteTxn.Commit.
func (r *Resource) commit(w *WriteTxn) (*CommitInfo, error) {
	pageKeys := make([]int64, 0, len(w.redoLog))
	for k := range w.redoLog {
		pageKeys = append(pageKeys, k)
	}
	sort.Slice(pageKeys, func(i, j int) bool { return pageKeys[i] < pageKeys[j] })

	recordRoot := w.newRoot.Subtrees[page.SubtreeRecord]
	alloc := r.pageAllocator(w.writer)
	loader := r.pageLoader()

	// Step 1+2: flush dirty record pages in (indexType, pageKey) order;
	// each tree.Set call below writes every indirect ancestor it
	// touches and threads the freshly computed hash into the parent
	// slot, so hash propagation falls out of the same pass.
	for _, pk := range pageKeys {
		p := w.redoLog[pk]
		encoded := record.Encode(nil, p)
		leafRef, err := w.writer.WritePage(iostore.KindOrdinary, encoded)
		if err != nil {
			return nil, err
		}
		newRoot, err := page.Set(recordRoot, uint64(pk), r.opts.Fanout,
			&page.Ref{Offset: leafRef.Offset, Hash: leafRef.Hash}, loader, alloc)
		if err != nil {
			return nil, err
		}
		recordRoot = newRoot
	}
	w.newRoot.Subtrees[page.SubtreeRecord] = recordRoot

	// Secondary-index subtrees are maintained live in memory by
	// listeners (C10) but are not threaded back through the page tree
	// this session; any populated one is flagged RebuildNeeded rather
	// than silently going stale. Nothing in this package reads the flag.
	for _, kind := range []page.SubtreeKind{page.SubtreePathSummary, page.SubtreeCASIndex, page.SubtreePathIndex, page.SubtreeNameIndex} {
		if w.newRoot.Subtrees[kind] != nil {
			w.newRoot.RebuildNeeded[kind] = true
		}
	}

	// Step 3 already happened at BeginWrite (newRoot allocated); stamp
	// its timestamp now, at the point it actually becomes durable.
	nowMillis := time.Now().UnixMilli()
	w.newRoot.TimestampMillis = nowMillis

	// Step 4: revision root page, then uber page (written once; its
	// offset is what gets duplicated into the two sidecar slots).
	revRootRef, err := w.writer.WritePage(iostore.KindRevisionRoot, page.EncodeRevisionRootPage(nil, w.newRoot))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	newRevisionCount := uint64(len(r.revisions) + 1)
	r.mu.Unlock()

	uber := &page.UberPage{RevisionCount: newRevisionCount}
	uberRef, err := w.writer.WritePage(iostore.KindUber, page.EncodeUberPage(nil, uber))
	if err != nil {
		return nil, err
	}

	// Step 5: two redundant sidecar slots, then the revision entry and
	// in-memory revision index, only after both slots are durable.
	if err := w.writer.WriteSidecarUberSlot(0, uberRef.Offset, newRevisionCount); err != nil {
		return nil, err
	}
	if err := w.writer.WriteSidecarUberSlot(1, uberRef.Offset, newRevisionCount); err != nil {
		return nil, err
	}
	if err := w.writer.Sync(); err != nil {
		return nil, err
	}
	if err := w.writer.AppendRevisionEntry(w.newRoot.RevisionNumber, revRootRef.Offset, nowMillis); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.revisions = append(r.revisions, w.newRoot)
	r.mu.Unlock()
	r.revIndex.Append(nowMillis, revRootRef.Offset)

	// Step 6 + 7.
	r.epochs.SetLastCommittedRevision(w.newRoot.RevisionNumber)
	r.epochs.Deregister(w.ticket)
	r.writeLock.Release()

	r.logger.Info("committed revision",
		zap.Uint64("revision", w.newRoot.RevisionNumber),
		zap.Int("dirtyRecordPages", len(pageKeys)))

	r.maybeTriggerCompaction()

	return &CommitInfo{Revision: w.newRoot.RevisionNumber, TimestampMillis: nowMillis}, nil
}

// maybeTriggerCompaction increments the since-last-compaction counter and,
// once Options.CompactEveryNRevisions has been reached, launches a single
// Compact in the background so the committing writer never blocks on it.
// Compact itself re-acquires the write lock and resource mutex, so this
// must run after commit has released both (§4.6 step 7).
func (r *Resource) maybeTriggerCompaction() {
	if r.opts.CompactEveryNRevisions == 0 {
		return
	}

	r.compactionMu.Lock()
	r.revisionsSinceCompaction++
	due := r.revisionsSinceCompaction >= r.opts.CompactEveryNRevisions
	if due {
		r.revisionsSinceCompaction = 0
	}
	r.compactionMu.Unlock()

	if !due {
		return
	}

	go func() {
		info, err := r.Compact()
		if err != nil {
			r.logger.Error("background compaction failed", zap.Error(err))
			return
		}
		if !info.Ran {
			r.logger.Info("background compaction skipped: readers still pinned")
		}
	}()
}

// abort drops the redo log and truncates the data file back to the
// offset captured before the write transaction began appending (§4.6).
func (r *Resource) abort(w *WriteTxn) error {
	defer func() {
		r.epochs.Deregister(w.ticket)
		r.writeLock.Release()
	}()
	r.logger.Info("aborted write transaction", zap.Uint64("baseRevision", w.baseRevision))
	return w.writer.TruncateTo(w.priorEndOffset)
}
