package txn

import (
	"go.uber.org/zap"

	"github.com/arbordb/arbor/internal/iostore"
	"github.com/arbordb/arbor/internal/page"
	"github.com/arbordb/arbor/internal/record"
	"github.com/arbordb/arbor/internal/revindex"
)

// CompactionInfo reports the outcome of a Compact call.
type CompactionInfo struct {
	Ran              bool
	RetainedRevision uint64
	ReclaimedBytes   uint64
}

// Compact rewrites storage to hold only the live record pages of the
// latest committed revision, once the epoch tracker shows no reader is
// pinned at all (§4.7 "page fragments may be reused... iff r <
// minActiveRevision()"). It is the generalization of sirgallo-mari's
// Compact.go/CompactUtils.go (build a fresh file holding only the live
// version, then swap it in) to a gated operation: the teacher always
// had exactly one live version to compact to, where arbor keeps
// multiple revisions reachable for pinned readers, so a physical file
// swap can only run when nothing is pinned to anything at all (not
// merely when the watermark has caught up to the tip — a reader
// pinned at the tip could still be mid-read when the swap happens).
// Secondary-index subtrees are dropped rather than copied forward and
// marked RebuildNeeded, the same deferred-rebuild handling a commit
// already gives them (see commit()).
func (r *Resource) Compact() (*CompactionInfo, error) {
	if err := r.writeLock.Acquire(r.opts.WriteLockTimeout); err != nil {
		return nil, err
	}
	defer r.writeLock.Release()

	r.mu.Lock()
	defer r.mu.Unlock()

	latest := uint64(len(r.revisions) - 1)
	if r.epochs.ActiveReaderCount() > 0 {
		return &CompactionInfo{Ran: false, RetainedRevision: latest}, nil
	}
	oldRoot := r.revisions[latest]

	var newRoot *page.RevisionRootPage
	var newRevOffset uint64
	reclaimed, err := r.storage.Rewrite(func(tmp *iostore.Storage) error {
		recordRoot, err := r.rewriteRecordSubtree(oldRoot, tmp)
		if err != nil {
			return err
		}

		w := tmp.CreateWriter()
		nr := page.NewRevisionRootPage(0, oldRoot.TimestampMillis, oldRoot)
		nr.Subtrees[page.SubtreeRecord] = recordRoot
		for _, kind := range []page.SubtreeKind{page.SubtreePathSummary, page.SubtreeCASIndex, page.SubtreePathIndex, page.SubtreeNameIndex} {
			nr.Subtrees[kind] = nil
			nr.RebuildNeeded[kind] = true
		}

		revRootRef, err := w.WritePage(iostore.KindRevisionRoot, page.EncodeRevisionRootPage(nil, nr))
		if err != nil {
			return err
		}
		uber := &page.UberPage{RevisionCount: 1}
		uberRef, err := w.WritePage(iostore.KindUber, page.EncodeUberPage(nil, uber))
		if err != nil {
			return err
		}
		if err := w.WriteSidecarUberSlot(0, uberRef.Offset, 1); err != nil {
			return err
		}
		if err := w.WriteSidecarUberSlot(1, uberRef.Offset, 1); err != nil {
			return err
		}
		if err := w.Sync(); err != nil {
			return err
		}
		if err := w.AppendRevisionEntry(0, revRootRef.Offset, oldRoot.TimestampMillis); err != nil {
			return err
		}

		newRoot = nr
		newRevOffset = revRootRef.Offset
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.revisions = []*page.RevisionRootPage{newRoot}
	r.revIndex = revindex.New()
	r.revIndex.Append(newRoot.TimestampMillis, newRevOffset)

	r.logger.Info("compacted storage",
		zap.Uint64("retainedRevision", latest),
		zap.Uint64("reclaimedBytes", reclaimed))

	return &CompactionInfo{Ran: true, RetainedRevision: latest, ReclaimedBytes: reclaimed}, nil
}

// rewriteRecordSubtree walks every live record page reachable from
// oldRoot's record subtree (read through the resource's existing
// storage) and re-writes each one into tmp's indirect tree, returning
// the new subtree root Ref.
func (r *Resource) rewriteRecordSubtree(oldRoot *page.RevisionRootPage, tmp *iostore.Storage) (*page.Ref, error) {
	oldReader := r.storage.CreateReader()
	defer oldReader.Close()

	oldLoader := r.pageLoader()
	newLoader := pageLoaderFor(tmp, r.opts.Fanout)
	w := tmp.CreateWriter()
	alloc := r.pageAllocator(w)

	var newRoot *page.Ref
	err := page.Walk(oldRoot.Subtrees[page.SubtreeRecord], r.opts.Fanout, oldLoader, func(pageKey uint64, leaf *page.Ref) error {
		raw, err := oldReader.ReadPage(iostore.PageRef{Offset: leaf.Offset, Hash: leaf.Hash})
		if err != nil {
			return err
		}
		p, err := record.Decode(raw)
		if err != nil {
			return err
		}
		encoded := record.Encode(nil, p)
		newLeaf, err := w.WritePage(iostore.KindOrdinary, encoded)
		if err != nil {
			return err
		}
		next, err := page.Set(newRoot, pageKey, r.opts.Fanout,
			&page.Ref{Offset: newLeaf.Offset, Hash: newLeaf.Hash}, newLoader, alloc)
		if err != nil {
			return err
		}
		newRoot = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newRoot, nil
}
