package pagelock

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// fakeHost is a minimal in-memory PageHost for tests: it serves whatever
// PageImage was last published via publish, and counts wait brackets so
// tests can assert a worker actually parked.
type fakeHost struct {
	mu     sync.Mutex
	images map[Blkno]PageImage

	waitStarts int32
	waitEnds   int32

	critStarts int32
	critEnds   int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{images: make(map[Blkno]PageImage)}
}

func (h *fakeHost) publish(blkno Blkno, img PageImage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.images[blkno] = img
}

func (h *fakeHost) ReadPage(blkno Blkno, _ uint32) (PageImage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	img, ok := h.images[blkno]
	return img, ok
}

func (h *fakeHost) IncUsageCount(Blkno, bool)        {}
func (h *fakeHost) ReserveUndoSize(TupleKind) uint32 { return 0 }
func (h *fakeHost) GiveUpUndoSize(TupleKind)         {}
func (h *fakeHost) WaitStart()                       { atomic.AddInt32(&h.waitStarts, 1) }
func (h *fakeHost) WaitEnd()                         { atomic.AddInt32(&h.waitEnds, 1) }
func (h *fakeHost) CritSectionStart()                { atomic.AddInt32(&h.critStarts, 1) }
func (h *fakeHost) CritSectionEnd()                  { atomic.AddInt32(&h.critEnds, 1) }

// bytesComparator compares tuple keys lexicographically; good enough for
// tests, which encode keys as plain byte strings.
type bytesComparator struct{}

func (bytesComparator) Compare(tuple, hikey []byte) CmpResult {
	switch c := bytes.Compare(tuple, hikey); {
	case c < 0:
		return CmpLess
	case c > 0:
		return CmpGreater
	default:
		return CmpEqual
	}
}

func newTestTable(maxProcs int) (*Table, *fakeHost) {
	host := newFakeHost()
	cfg := DefaultConfig(WithMaxProcs(maxProcs))
	return NewTable(cfg, host, nil), host
}
