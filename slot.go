package pagelock

// workerSem is a binary semaphore a worker parks on, grounded on
// vanadium-go.lib/nsync's binarySemaphore: a capacity-1 channel used as a
// non-blocking-post / blocking-wait pair, rather than a raw OS semaphore.
type workerSem struct {
	ch chan struct{}
}

func newWorkerSem() workerSem {
	return workerSem{ch: make(chan struct{}, 1)}
}

// wait blocks until the semaphore is posted.
func (s workerSem) wait() {
	<-s.ch
}

// post ensures the semaphore's count is 1, without blocking if it already is
// (this is what lets the releaser's post race harmlessly ahead of a park).
func (s workerSem) post() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// WaiterSlot is the per-worker shared-memory record from spec.md §3. It is
// owned by its worker; foreign writers only ever touch pageWaiting, split,
// and inserted, and only before posting the semaphore that wakes the owner
// (spec.md §5's ordering guarantee), plus next while the slot is enqueued
// (the releaser relinks the chain when it splices waiters out).
type WaiterSlot struct {
	sem workerSem

	// next chains toward older waiters; valid only while enqueued.
	next uint32

	// pageWaiting is the park/unpark flag: the owner loops on its
	// semaphore until this becomes false.
	pageWaiting bool

	// waitExclusive is set at enqueue time: true if the waiter needs the
	// lock itself, false if it only needs a change-count tick.
	waitExclusive bool

	// blkno/changeCount/treeID identify a tuple-carrying waiter's target
	// page, generation, and tree, guarding against wrong-page wakeups.
	blkno      Blkno
	changeCount uint32
	treeID     TreeID

	// tuple payload a lock holder may insert on this waiter's behalf.
	tupleData          []byte
	tupleKind          TupleKind
	reservedUndoSize   uint32

	// split/inserted are set by the releaser to steer the waiter once
	// woken: split means "re-descend, your target moved"; inserted means
	// "your tuple was inserted for you, just return".
	split    bool
	inserted bool
}

// reset clears a slot's tuple-carrying fields back to their at-rest values.
// Called once the slot is dequeued, so a foreign scanner walking the chain
// never misclassifies a reused slot as still carrying a live waiter.
func (s *WaiterSlot) reset() {
	s.next = InvalidSlot
	s.blkno = InvalidBlkno
	s.changeCount = 0
	s.treeID = TreeID{}
	s.tupleData = nil
	s.tupleKind = 0
	s.reservedUndoSize = 0
	s.split = false
	s.inserted = false
	s.waitExclusive = false
}

// SlotTable is the fixed shared-memory array of per-worker WaiterSlots
// (spec.md §2-C1, §9 "Shared-memory layout"). Its size (MaxProcs) is fixed
// at construction; growing it at runtime is out of scope, per spec.md §9.
type SlotTable struct {
	slots []WaiterSlot
}

// NewSlotTable allocates a table with room for maxProcs workers. Worker IDs
// are indices into this table, assigned by the caller (the host's process
// bootstrap), matching the source's MYPROCNUMBER convention.
func NewSlotTable(maxProcs int) *SlotTable {
	if maxProcs <= 0 || uint32(maxProcs) >= InvalidSlot {
		invariantViolation("slot table size %d out of range", maxProcs)
	}
	t := &SlotTable{slots: make([]WaiterSlot, maxProcs)}
	for i := range t.slots {
		t.slots[i].sem = newWorkerSem()
		t.slots[i].reset()
	}
	return t
}

// Len reports the table's fixed capacity.
func (t *SlotTable) Len() int { return len(t.slots) }

// slot returns the slot for a worker id, panicking if out of range (a
// malformed waiter chain is an invariant violation, per spec.md §7).
func (t *SlotTable) slot(worker uint32) *WaiterSlot {
	if worker == InvalidSlot || int(worker) >= len(t.slots) {
		invariantViolation("waiter chain referenced out-of-range worker %d", worker)
	}
	return &t.slots[worker]
}
