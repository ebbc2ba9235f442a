package pagelock

// PendingTuple is the caller's serialized insert, carried in the waiter
// slot so the lock holder can perform it on the caller's behalf during a
// split (spec.md §4.3).
type PendingTuple struct {
	Tree             TreeID
	Data             []byte
	Kind             TupleKind
	ReservedUndoSize uint32
}

// LockResult is the outcome of LockWithTuple.
type LockResult int

const (
	// LockResultLocked means the caller now holds blkno exclusively.
	LockResultLocked LockResult = iota
	// LockResultInserted means the holder inserted the tuple on the
	// caller's behalf; the caller holds no lock and should treat this as
	// a successful insert.
	LockResultInserted
	// LockResultSplitDetected means the caller must re-descend from the
	// parent: the target moved, and no in-memory right sibling could be
	// resolved.
	LockResultSplitDetected
)

// lockOrEnqueueOrDetectSplit is lock_page_or_queue_or_split_detect: it
// re-reads a consistent page image whenever the generation looks stale,
// follows the right-link if the key has moved past the high key, and
// otherwise behaves like lockOrEnqueue.
func (t *Table) lockOrEnqueueOrDetectSplit(
	worker uint32,
	blkno *Blkno,
	changeCount *uint32,
	tuple PendingTuple,
	cmp Comparator,
	haveImage *bool,
	img *PageImage,
) (prev state, locked bool, splitDetected bool) {
	slot := t.slots.slot(worker)

	for {
		header := t.pool.header(*blkno)
		cur := header.state.load()

		if !*haveImage || uint64(img.ChangeCount) != cur.changeCount() {
			fresh, ok := t.host.ReadPage(*blkno, *changeCount)
			if !ok {
				return 0, false, true
			}
			*img = fresh
			*haveImage = true

			if !img.Rightmost && cmp.Compare(tuple.Data, img.HighKey) != CmpLess {
				if img.RightLink.IsValid() {
					*blkno = img.RightLink.Blkno()
					*changeCount = img.RightLink.ChangeCount()
					slot.blkno = *blkno
					slot.changeCount = *changeCount
					if t.lockedPages[worker].has(*blkno) {
						invariantViolation("worker %d already holds redirected page %d", worker, *blkno)
					}
					*haveImage = false
					continue
				}
				return 0, false, true
			}
		}

		var next state
		if !cur.locked() {
			next = cur.withLocked(true)
		} else {
			if cur.waiterHead() == worker {
				invariantViolation("worker %d already queued on its own page", worker)
			}
			slot.next = cur.waiterHead()
			slot.waitExclusive = true
			slot.pageWaiting = true
			next = cur.withWaiterHead(worker)
		}
		if header.state.cas(cur, next) {
			return cur, !cur.locked(), false
		}
	}
}

// defaultMaxSplitItems bounds how many tuple-carrying waiters
// GetWaitersWithTuples returns in one call when Config.MaxSplitItems is not
// positive (spec.md §4.3).
const defaultMaxSplitItems = 32

// GetWaitersWithTuples walks blkno's waiter chain and returns up to
// cfg.MaxSplitItems slot ids whose wait_exclusive/blkno/changeCount/tree all
// match blkno's current generation and tree — candidates for insert-on-
// behalf during a split (spec.md §4.3). The caller must already hold blkno.
func (t *Table) GetWaitersWithTuples(worker uint32, blkno Blkno, tree TreeID) []uint32 {
	t.checkWorker(worker)
	if !t.lockedPages[worker].has(blkno) {
		invariantViolation("get_waiters_with_tuples called without holding page %d", blkno)
	}
	header := t.pool.header(blkno)
	cur := header.state.load()
	changeCount := uint32(cur.changeCount())

	limit := t.cfg.MaxSplitItems
	if limit <= 0 {
		limit = defaultMaxSplitItems
	}

	var out []uint32
	pgprocnum := cur.waiterHead()
	for pgprocnum != InvalidSlot && len(out) < limit {
		slot := t.slots.slot(pgprocnum)
		if slot.waitExclusive && slot.blkno == blkno && slot.changeCount == changeCount && slot.treeID == tree {
			out = append(out, pgprocnum)
		}
		pgprocnum = slot.next
	}
	return out
}

// WakeupWaitersWithTuples marks each listed waiter's slot inserted, so the
// next release of their target page wakes them under §4.2's "inserted
// always wakes" rule instead of posting their semaphore directly here
// (spec.md §4.3's get/wakeup split).
func (t *Table) WakeupWaitersWithTuples(indices []uint32) {
	for _, pgprocnum := range indices {
		t.slots.slot(pgprocnum).inserted = true
	}
}

// LockWithTuple implements lock_page_with_tuple: it attempts to lock blkno
// for an insert of tuple, but if the page was split out from under the
// caller, it follows in-memory right-links and may ultimately either lock
// the true target, discover the holder already performed the insert for
// it, or report that the caller must re-descend from the parent.
func (t *Table) LockWithTuple(
	worker uint32,
	blkno Blkno,
	changeCount uint32,
	tuple PendingTuple,
	cmp Comparator,
) (result LockResult, lockedBlkno Blkno, lockedChangeCount uint32) {
	t.checkWorker(worker)
	if t.lockedPages[worker].has(blkno) {
		invariantViolation("worker %d already holds page %d", worker, blkno)
	}

	slot := t.slots.slot(worker)
	var haveImage bool
	var img PageImage

	for {
		slot.blkno = blkno
		slot.changeCount = changeCount
		slot.split = false
		slot.inserted = false
		slot.treeID = tuple.Tree
		slot.tupleData = tuple.Data
		slot.tupleKind = tuple.Kind
		slot.reservedUndoSize = tuple.ReservedUndoSize

		prev, locked, splitDetected := t.lockOrEnqueueOrDetectSplit(
			worker, &blkno, &changeCount, tuple, cmp, &haveImage, &img)

		if splitDetected {
			slot.reset()
			return LockResultSplitDetected, InvalidBlkno, 0
		}

		if locked {
			slot.reset()
			t.host.IncUsageCount(blkno, false)
			t.lockedPages[worker].add(blkno, prev.withLocked(true))
			return LockResultLocked, blkno, changeCount
		}

		t.parkUntilWoken(worker)

		if slot.inserted {
			slot.reset()
			if tuple.Kind != 0 || tuple.ReservedUndoSize > 0 {
				t.host.GiveUpUndoSize(tuple.Kind)
			}
			return LockResultInserted, InvalidBlkno, 0
		}

		if !slot.split {
			// Lock is free (released without a split); loop back and
			// race for it directly rather than re-descending.
			continue
		}
		// Target page was split; re-descend starting from the
		// blkno/changeCount this worker was last queued on (the caller's
		// values, or the sibling a right-link redirected it to), forcing
		// a fresh read on the next iteration.
		haveImage = false
	}
}
