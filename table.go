package pagelock

// Table is the page-state concurrency core: it owns the page pool, the
// waiter slot table, and every worker's locked-page and in-progress-split
// registries. One Table serves an entire tree (or, as in the source, an
// entire database cluster of in-memory pages).
type Table struct {
	cfg  Config
	host PageHost
	val  PageValidator

	pool *Pool
	slots *SlotTable

	lockedPages  []*lockedPageRegistry
	inProgress   []*inProgressSplitRegistry
}

// NewTable builds a Table. host supplies the external collaborators from
// spec.md §6; validator may be nil, in which case pages are never
// structurally checked before unlock.
func NewTable(cfg Config, host PageHost, validator PageValidator) *Table {
	if cfg.MaxProcs <= 0 {
		cfg = DefaultConfig()
	}
	if validator == nil {
		validator = NopValidator{}
	}

	t := &Table{
		cfg:   cfg,
		host:  host,
		val:   validator,
		pool:  newPool(),
		slots: NewSlotTable(cfg.MaxProcs),
	}
	t.lockedPages = make([]*lockedPageRegistry, cfg.MaxProcs)
	t.inProgress = make([]*inProgressSplitRegistry, cfg.MaxProcs)
	for i := range t.lockedPages {
		t.lockedPages[i] = newLockedPageRegistry(cfg.MaxLockedPages)
		t.inProgress[i] = newInProgressSplitRegistry(cfg.MaxTreeDepth * 2)
	}
	return t
}

// AllocatePage reserves a new page and returns its Blkno. The returned
// page is not locked; Lock or TryLock sets its lock bit, while
// DeclarePageAsLocked only registers it without setting the bit.
func (t *Table) AllocatePage() Blkno {
	return t.pool.Allocate()
}

func (t *Table) checkWorker(worker uint32) {
	if worker >= uint32(len(t.lockedPages)) {
		invariantViolation("worker id %d exceeds MaxProcs %d", worker, len(t.lockedPages))
	}
}

// HaveLockedPages reports whether worker currently holds any page lock
// (have_locked_pages).
func (t *Table) HaveLockedPages(worker uint32) bool {
	t.checkWorker(worker)
	return t.lockedPages[worker].any()
}

// PageIsLocked reports whether worker is the one holding blkno
// (page_is_locked).
func (t *Table) PageIsLocked(worker uint32, blkno Blkno) bool {
	t.checkWorker(worker)
	return t.lockedPages[worker].has(blkno)
}
