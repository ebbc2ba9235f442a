package pagelock

import "github.com/google/uuid"

// Blkno identifies an in-memory page slot. It plays the role of
// OInMemoryBlkno in the source system: an index into a fixed shared-memory
// page pool, not a filesystem offset.
type Blkno uint32

// InvalidBlkno is the zero-value sentinel meaning "no page".
const InvalidBlkno Blkno = 0

// TreeID identifies the tree (table/index) a page belongs to. It plays the
// role of the source's ORelOids: two waiters racing on the same Blkno but
// for different trees must never be confused with one another.
type TreeID = uuid.UUID

// TupleKind distinguishes how a serialized tuple's bytes should be
// interpreted by the host when it is eventually inserted on a waiter's
// behalf. The core treats it as opaque.
type TupleKind uint8

// RightLink packs a sibling page's Blkno and the change count the splitter
// observed when publishing the link, mirroring the source's MAKE/GET_BLKNO/
// GET_CHANGECOUNT helpers operating on a single 64-bit word.
type RightLink uint64

// MakeRightLink packs blkno and changeCount into a RightLink.
func MakeRightLink(blkno Blkno, changeCount uint32) RightLink {
	return RightLink(uint64(blkno)<<32 | uint64(changeCount))
}

// Blkno extracts the sibling's block number.
func (r RightLink) Blkno() Blkno {
	return Blkno(uint64(r) >> 32)
}

// ChangeCount extracts the generation the splitter observed.
func (r RightLink) ChangeCount() uint32 {
	return uint32(r)
}

// IsValid reports whether the right-link names a real page.
func (r RightLink) IsValid() bool {
	return r.Blkno() != InvalidBlkno
}

// CmpResult is the three-way result of a tuple comparator.
type CmpResult int

const (
	CmpLess CmpResult = iota - 1
	CmpEqual
	CmpGreater
)

// Comparator compares a candidate tuple against a page's high key. The core
// never interprets tuple bytes itself; key encoding is opaque.
type Comparator interface {
	Compare(tuple []byte, hikey []byte) CmpResult
}

// PageImage is the part of a consistent page snapshot, returned by
// PageHost.ReadPage, that the core inspects: rightmost flag, high key,
// right-link and change count.
type PageImage struct {
	Rightmost   bool
	HighKey     []byte
	RightLink   RightLink
	ChangeCount uint32
}

// PageHost is the external collaborator the core reads pages, reserves undo
// space, and reports wait telemetry through. None of its methods are
// implemented here; spec.md §6 treats them as owned by the surrounding
// database engine.
type PageHost interface {
	// ReadPage returns a consistent image of blkno at the requested
	// change count, or ok=false if no such consistent snapshot could be
	// produced (the page moved on, was evicted, etc).
	ReadPage(blkno Blkno, changeCount uint32) (img PageImage, ok bool)

	// IncUsageCount is the memory-pool eviction hint (page_inc_usage_count).
	IncUsageCount(blkno Blkno, hot bool)

	// ReserveUndoSize and GiveUpUndoSize bracket a tuple-carrying waiter's
	// pre-allocated undo slot.
	ReserveUndoSize(kind TupleKind) uint32
	GiveUpUndoSize(kind TupleKind)

	// WaitStart/WaitEnd bracket a park on the worker semaphore, for wait
	// telemetry (pg_stat_activity-style wait event reporting upstream).
	WaitStart()
	WaitEnd()

	// CritSectionStart/CritSectionEnd bracket the non-interruptible window
	// around a split's flag mutations (§4.5): the host counts these to know
	// it must not deliver an interrupt or kill signal to the worker while
	// one is open.
	CritSectionStart()
	CritSectionEnd()
}

// PageValidator performs the pre-unlock structural check the source runs
// under CHECK_PAGE_STRUCT/CHECK_PAGE_STATS (unlock_check_page). It panics on
// corruption, matching spec.md §7's "page structure corruption... panic".
type PageValidator interface {
	ValidatePage(blkno Blkno)
}

// NopValidator is a PageValidator that never panics, for hosts that checksum
// or fsck pages by some other path.
type NopValidator struct{}

func (NopValidator) ValidatePage(Blkno) {}
