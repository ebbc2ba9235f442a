package pagelock

// readEnabledOrEnqueue is read_enabled_or_queue: it either observes reads
// are already enabled, or enqueues the reader as a non-exclusive waiter.
func (t *Table) readEnabledOrEnqueue(header *pageHeader, worker uint32) state {
	slot := t.slots.slot(worker)
	cur := header.state.load()
	for {
		if !cur.noRead() {
			return cur
		}
		if cur.waiterHead() == worker {
			invariantViolation("worker %d already queued on its own page", worker)
		}
		slot.next = cur.waiterHead()
		slot.waitExclusive = false
		slot.pageWaiting = true
		next := cur.withWaiterHead(worker)
		if header.state.cas(cur, next) {
			return cur
		}
		cur = header.state.load()
	}
}

// WaitForReadEnable blocks worker until blkno's no-read bit is clear
// (page_wait_for_read_enable). Readers never acquire the lock bit; they
// only ever enqueue as non-exclusive waiters.
func (t *Table) WaitForReadEnable(worker uint32, blkno Blkno) {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	for {
		prev := t.readEnabledOrEnqueue(header, worker)
		if !prev.noRead() {
			return
		}
		t.parkUntilWoken(worker)
	}
}

// stateChangedOrEnqueue is state_changed_or_queue: it either observes the
// change count has already moved past snapshot, or enqueues as a
// non-exclusive waiter to be woken on the next tick.
func (t *Table) stateChangedOrEnqueue(header *pageHeader, worker uint32, snapshot state) state {
	slot := t.slots.slot(worker)
	cur := header.state.load()
	for {
		if cur.changeCount() != snapshot.changeCount() {
			return cur
		}
		if cur.waiterHead() == worker {
			invariantViolation("worker %d already queued on its own page", worker)
		}
		slot.next = cur.waiterHead()
		slot.waitExclusive = false
		slot.pageWaiting = true
		next := cur.withWaiterHead(worker)
		if header.state.cas(cur, next) {
			return cur
		}
		cur = header.state.load()
	}
}

// waitForChangeCount blocks worker until blkno's change count differs from
// snapshot's (page_wait_for_changecount), then returns the fresh state. The
// double-check on unpark closes the race where a spurious wakeup arrives
// just before the change-count tick actually lands.
func (t *Table) waitForChangeCount(worker uint32, blkno Blkno, snapshot state) state {
	t.checkWorker(worker)
	header := t.pool.header(blkno)
	for {
		cur := t.stateChangedOrEnqueue(header, worker, snapshot)
		if cur.changeCount() != snapshot.changeCount() {
			return cur
		}
		t.parkUntilWoken(worker)
		cur = header.state.load()
		if cur.changeCount() != snapshot.changeCount() {
			return cur
		}
	}
}
