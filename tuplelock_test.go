package pagelock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLockWithTupleSplitDetect is S4: the target page was split out from
// under the caller to a right sibling that is reachable in memory, so
// LockWithTuple re-targets and locks the sibling instead of reporting
// split_detected.
func TestLockWithTupleSplitDetect(t *testing.T) {
	table, host := newTestTable(4)
	left := table.AllocatePage()
	right := table.AllocatePage()
	tree := uuid.New()

	host.publish(left, PageImage{Rightmost: false, HighKey: []byte("m"), RightLink: MakeRightLink(right, 1)})
	host.publish(right, PageImage{Rightmost: true})

	result, lockedBlkno, _ := table.LockWithTuple(0, left, 0, PendingTuple{
		Tree: tree,
		Data: []byte("z"),
	}, bytesComparator{})

	require.Equal(t, LockResultLocked, result)
	assert.Equal(t, right, lockedBlkno)
	assert.True(t, table.PageIsLocked(0, right))
	assert.False(t, table.PageIsLocked(0, left))
}

// TestLockWithTupleSplitDetectedNoSibling is the case where the right-link
// target isn't resolvable: the caller must re-descend from the parent.
func TestLockWithTupleSplitDetectedNoSibling(t *testing.T) {
	table, host := newTestTable(4)
	left := table.AllocatePage()
	tree := uuid.New()

	host.publish(left, PageImage{Rightmost: false, HighKey: []byte("m"), RightLink: RightLink(0)})

	result, lockedBlkno, _ := table.LockWithTuple(0, left, 0, PendingTuple{
		Tree: tree,
		Data: []byte("z"),
	}, bytesComparator{})

	assert.Equal(t, LockResultSplitDetected, result)
	assert.Equal(t, InvalidBlkno, lockedBlkno)
}

// TestLockWithTupleInsertOnBehalf is S5: W1 queues on P with a tuple; W2
// (the holder) discovers it via GetWaitersWithTuples, marks it inserted via
// WakeupWaitersWithTuples, then unlocks. W1 must return "inserted", not
// "locked".
func TestLockWithTupleInsertOnBehalf(t *testing.T) {
	table, host := newTestTable(4)
	blkno := table.AllocatePage()
	tree := uuid.New()

	host.publish(blkno, PageImage{Rightmost: true})

	table.Lock(1, blkno)

	resultCh := make(chan LockResult, 1)
	go func() {
		result, _, _ := table.LockWithTuple(0, blkno, 0, PendingTuple{
			Tree: tree,
			Data: []byte("k"),
		}, bytesComparator{})
		resultCh <- result
	}()

	// Wait for W1 to enqueue as a tuple waiter on blkno.
	require.Eventually(t, func() bool {
		cur := table.pool.header(blkno).state.load()
		return cur.waiterHead() == 0
	}, time.Second, time.Millisecond)

	waiters := table.GetWaitersWithTuples(1, blkno, tree)
	require.Equal(t, []uint32{0}, waiters)
	table.WakeupWaitersWithTuples(waiters)
	table.Unlock(1, blkno)

	select {
	case result := <-resultCh:
		assert.Equal(t, LockResultInserted, result)
	case <-time.After(time.Second):
		t.Fatal("W1 never woke after its tuple was inserted on its behalf")
	}
	assert.False(t, table.PageIsLocked(0, blkno))
}

func TestGetWaitersWithTuplesRequiresHeldPage(t *testing.T) {
	table, _ := newTestTable(4)
	blkno := table.AllocatePage()
	assert.Panics(t, func() {
		table.GetWaitersWithTuples(0, blkno, uuid.New())
	})
}
