package pagelock

// RegisterInProgressSplit stages a split: right is marked broken by default,
// the left/right-link fields are published under both pages' locks (the
// caller must already hold both), and right is pushed onto the worker's
// in-progress-split stack so a crash before finalize is recoverable
// (spec.md §4.5 "Staging a split").
func (t *Table) RegisterInProgressSplit(worker uint32, left, right Blkno, rightChangeCount uint32) {
	t.checkWorker(worker)
	if !t.lockedPages[worker].has(left) || !t.lockedPages[worker].has(right) {
		invariantViolation("register_inprogress_split requires both pages %d, %d locked", left, right)
	}

	rightHeader := t.pool.header(right)
	leftHeader := t.pool.header(left)

	t.host.CritSectionStart()
	rightHeader.brokenSplit.Store(true)
	rightHeader.leftBlkno.Store(uint32(left))
	leftHeader.rightLink.Store(uint64(MakeRightLink(right, rightChangeCount)))
	t.host.CritSectionEnd()

	t.inProgress[worker].register(right)
}

// UnregisterInProgressSplit removes right from the worker's in-progress-
// split stack once its finalize has committed successfully.
func (t *Table) UnregisterInProgressSplit(worker uint32, right Blkno) {
	t.checkWorker(worker)
	t.inProgress[worker].unregister(right)
}

// SplitMarkFinished commits or poisons a staged split (spec.md §4.5
// "Finalizing"). With useLock, it locates the left neighbor through right's
// back-pointer, locks it, revalidates the back-pointer still names this left
// page (a concurrent split may have moved it), blocks reads on the left
// page, and locks the right page; it then enters the critical section to
// commit or poison the staged flags. Without useLock (the
// mark_incomplete_splits unwind path) it skips the locking and operates on
// the pages as the caller already has them.
func (t *Table) SplitMarkFinished(worker uint32, right Blkno, useLock bool, success bool) {
	t.checkWorker(worker)
	rightHeader := t.pool.header(right)

	var left Blkno
	if useLock {
		for {
			left = Blkno(rightHeader.leftBlkno.Load())
			if left == InvalidBlkno {
				invariantViolation("split_mark_finished on right page %d with no left neighbor", right)
			}
			t.Lock(worker, left)
			if Blkno(rightHeader.leftBlkno.Load()) == left {
				break
			}
			// Left neighbor moved between our read and our lock; release
			// and retry with whatever leftBlkno points to now.
			t.Unlock(worker, left)
		}
		t.BlockReads(worker, left)
		t.Lock(worker, right)
	} else {
		left = Blkno(rightHeader.leftBlkno.Load())
	}

	t.host.CritSectionStart()
	if success {
		rightHeader.brokenSplit.Store(false)
		if left != InvalidBlkno {
			t.pool.header(left).rightLink.Store(0)
		}
		rightHeader.leftBlkno.Store(uint32(InvalidBlkno))
	} else {
		rightHeader.brokenSplit.Store(true)
	}
	t.host.CritSectionEnd()

	if !success {
		currentLogger().Warn().Uint32("right", uint32(right)).Uint32("left", uint32(left)).
			Msg("split left unfinalized, marked broken")
	}

	if useLock {
		// Split-mode release: wakes any tuple waiters whose target moved
		// to the now-split left page, in addition to the ordinary set.
		t.UnlockAfterSplit(worker, left)
		t.UnlockAfterSplit(worker, right)
	}

	currentLogger().Debug().Uint32("right", uint32(right)).Uint32("left", uint32(left)).
		Bool("use_lock", useLock).Bool("success", success).Msg("split finalize")
}

// MarkIncompleteSplits drains the worker's in-progress-split stack and
// poisons each staged right sibling (spec.md §4.5 "Error unwind"), invoked
// when the worker aborts between staging and finalizing a split.
func (t *Table) MarkIncompleteSplits(worker uint32) {
	t.checkWorker(worker)
	for _, right := range t.inProgress[worker].drain() {
		t.SplitMarkFinished(worker, right, false, false)
	}
}
