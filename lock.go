package pagelock

// lockOrEnqueue is the combined CAS-retry primitive behind Lock: it either
// sets the lock bit (returning locked=true) or splices the caller's slot
// onto the head of the waiter chain (returning locked=false), matching
// lock_page_or_queue.
func (t *Table) lockOrEnqueue(header *pageHeader, worker uint32) (prev state, locked bool) {
	slot := t.slots.slot(worker)
	cur := header.state.load()
	for {
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
			return cur, !cur.locked()
		}
		cur = header.state.load()
	}
}

// parkUntilWoken blocks worker's goroutine on its semaphore until the
// releaser clears pageWaiting, absorbing and then reposting any spurious
// wakeups (spec.md §4.2's "Bounded retries"/"Absorb spurious wakeups").
func (t *Table) parkUntilWoken(worker uint32) {
	slot := t.slots.slot(worker)
	extraWaits := 0
	t.host.WaitStart()
	for {
		slot.sem.wait()
		if !slot.pageWaiting {
			break
		}
		extraWaits++
	}
	t.host.WaitEnd()
	for ; extraWaits > 0; extraWaits-- {
		slot.sem.post()
	}
}

// Lock acquires blkno exclusively for worker, parking if another worker
// already holds it. It does not block readers; call BlockReads once the
// caller is ready to mutate (spec.md §4.2 "Acquire").
func (t *Table) Lock(worker uint32, blkno Blkno) {
	t.checkWorker(worker)
	if t.lockedPages[worker].has(blkno) {
		invariantViolation("worker %d already holds page %d", worker, blkno)
	}
	header := t.pool.header(blkno)
	t.host.IncUsageCount(blkno, false)

	var prev state
	for {
		var locked bool
		prev, locked = t.lockOrEnqueue(header, worker)
		if locked {
			break
		}
		t.parkUntilWoken(worker)
	}

	t.lockedPages[worker].add(blkno, prev.withLocked(true))
	currentLogger().Debug().Uint32("worker", worker).Uint32("blkno", uint32(blkno)).Msg("page locked")
}

// TryLock attempts to acquire blkno without enqueueing on failure
// (try_lock_page).
func (t *Table) TryLock(worker uint32, blkno Blkno) bool {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	prev, acquired := header.state.tryLockBit()
	if !acquired {
		return false
	}
	t.host.IncUsageCount(blkno, false)
	t.lockedPages[worker].add(blkno, prev.withLocked(true))
	return true
}

// DeclarePageAsLocked registers blkno as held by worker without performing
// any CAS (declare_page_as_locked). It does not set the lock bit: the page's
// state word is recorded as it is. Pages from AllocatePage start unlocked,
// so registering one here does not by itself give the worker exclusive
// access.
func (t *Table) DeclarePageAsLocked(worker uint32, blkno Blkno) {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	t.lockedPages[worker].add(blkno, header.state.load())
}

// BlockReads sets the no-read bit on a page the caller already holds
// (page_block_reads). Readers observing no-read must wait for the change
// count to advance.
func (t *Table) BlockReads(worker uint32, blkno Blkno) {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	got := t.lockedPages[worker].getState(blkno)
	if got.changeCount() != header.state.load().changeCount() {
		invariantViolation("change count drifted under worker %d's own lock on page %d", worker, blkno)
	}
	newState := header.state.fetchOrNoRead()
	if !newState.locked() {
		invariantViolation("block_reads called without holding the lock on page %d", blkno)
	}
	t.lockedPages[worker].updateState(blkno, newState.withNoRead(true))
}

// unlockInternal implements unlock_page_internal: a single CAS that clears
// lock/no-read, advances the change count if a no-read episode just ended,
// and splices out every waiter the release wakes, replacing the waiter
// head with the survivors.
//
// Selection differs from the upstream C in one respect, noted in
// DESIGN.md: among exclusive waiters, this picks the first one found
// walking from the head (i.e. literally the latest-enqueued, matching
// spec.md §4.2's stated policy) rather than the source's last-one-wins
// overwrite, which in a single uncontended pass ends up picking the
// oldest. Both satisfy testable property 6 (at most one exclusive wake).
func (t *Table) unlockInternal(worker uint32, blkno Blkno, split bool) {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	t.val.ValidatePage(blkno)

	const invalid = InvalidSlot
	var (
		wakeupTail      uint32 = invalid
		prevTail        uint32 = invalid
		prevTailReplace uint32 = invalid
		exclusive       uint32 = invalid
		exclusivePrev   uint32 = invalid
		wokeExclusive   bool
	)

	cur := header.state.load()
	for {
		tail := cur.waiterHead()
		newTail := tail
		pgprocnum := tail
		prevPgprocnum := invalid

		for pgprocnum != prevTail {
			slot := t.slots.slot(pgprocnum)
			wake := slot.inserted || !slot.waitExclusive || (split && slot.blkno != InvalidBlkno)
			if wake {
				next := slot.next
				if !slot.inserted && split && slot.blkno != InvalidBlkno {
					slot.split = true
				}
				if prevPgprocnum == invalid {
					newTail = next
				} else {
					t.slots.slot(prevPgprocnum).next = next
				}
				slot.next = wakeupTail
				wakeupTail = pgprocnum
				pgprocnum = next
			} else {
				if !wokeExclusive && exclusive == invalid {
					exclusive = pgprocnum
					exclusivePrev = prevPgprocnum
				}
				prevPgprocnum = pgprocnum
				pgprocnum = slot.next
			}
		}

		if exclusive != invalid && !wokeExclusive {
			wokeExclusive = true
			exSlot := t.slots.slot(exclusive)
			if exclusivePrev == invalid {
				newTail = exSlot.next
			} else {
				t.slots.slot(exclusivePrev).next = exSlot.next
			}
			exSlot.next = wakeupTail
			wakeupTail = exclusive
			if prevPgprocnum == exclusive {
				prevPgprocnum = exclusivePrev
			}
		}

		if prevTail != prevTailReplace {
			if prevPgprocnum == invalid {
				newTail = prevTailReplace
			} else {
				t.slots.slot(prevPgprocnum).next = prevTailReplace
			}
		}

		newState := cur.withLocked(false).withNoRead(false)
		if cur.noRead() {
			newState = newState.withIncrementedChangeCount()
		}
		newState = newState.withWaiterHead(newTail)

		if header.state.cas(cur, newState) {
			break
		}

		prevTail = tail
		prevTailReplace = newTail
		cur = header.state.load()
	}

	t.lockedPages[worker].del(blkno)

	pgprocnum := wakeupTail
	for pgprocnum != invalid {
		slot := t.slots.slot(pgprocnum)
		next := slot.next
		slot.pageWaiting = false
		slot.sem.post()
		pgprocnum = next
	}

	currentLogger().Debug().Uint32("worker", worker).Uint32("blkno", uint32(blkno)).Bool("split", split).Msg("page unlocked")
}

// Unlock releases blkno, waking satisfied waiters per spec.md §4.2.
func (t *Table) Unlock(worker uint32, blkno Blkno) {
	t.unlockInternal(worker, blkno, false)
}

// UnlockAfterSplit releases blkno in split mode: every waiter whose
// blkno field is still live (its target may have moved) is woken to
// recheck, in addition to the ordinary wakeup set (unlock_page_after_split).
func (t *Table) UnlockAfterSplit(worker uint32, blkno Blkno) {
	t.unlockInternal(worker, blkno, true)
}

// ReleaseAllPageLocks drains the caller's locked-page registry, used by
// error unwind (release_all_page_locks). It releases the registry's front
// entry until none remain. The oldest page goes first, but each release
// swap-moves the newest remaining entry to the front, so the rest do not go
// in acquisition order (pages locked 1, 2, 3 are released 1, 3, 2).
func (t *Table) ReleaseAllPageLocks(worker uint32) {
	t.checkWorker(worker)
	for {
		blkno, ok := t.lockedPages[worker].first()
		if !ok {
			return
		}
		t.Unlock(worker, blkno)
	}
}

// Relock records the current state, unlocks, waits for any further change,
// then reacquires blkno (relock_page). It is used when a holder must wait
// for external progress before retrying its operation.
func (t *Table) Relock(worker uint32, blkno Blkno) {
	t.checkWorker(worker)
	snapshot := t.lockedPages[worker].getState(blkno)
	t.Unlock(worker, blkno)
	t.host.IncUsageCount(blkno, false)
	t.waitForChangeCount(worker, blkno, snapshot)
	t.Lock(worker, blkno)
}
