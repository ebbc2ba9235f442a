package pagelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReaderVsWriter is S2: a reader blocked on wait_for_read_enable wakes
// once the writer unlocks, observing no-read clear.
func TestReaderVsWriter(t *testing.T) {
	table, _ := newTestTable(4)
	blkno := table.AllocatePage()

	table.Lock(0, blkno)
	table.BlockReads(0, blkno)

	readerDone := make(chan struct{})
	go func() {
		table.WaitForReadEnable(1, blkno)
		close(readerDone)
	}()

	select {
	case <-readerDone:
		t.Fatal("reader must not proceed while no-read is set")
	case <-time.After(20 * time.Millisecond):
	}

	table.Unlock(0, blkno)

	select {
	case <-readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader never woke after unlock cleared no-read")
	}

	assert.False(t, table.pool.header(blkno).state.load().noRead())
}

func TestWaitForReadEnableReturnsImmediatelyWhenClear(t *testing.T) {
	table, _ := newTestTable(4)
	blkno := table.AllocatePage()

	done := make(chan struct{})
	go func() {
		table.WaitForReadEnable(0, blkno)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait_for_read_enable blocked on an already-readable page")
	}
}

func TestWaitForChangeCountDoubleChecksOnUnpark(t *testing.T) {
	table, _ := newTestTable(4)
	blkno := table.AllocatePage()
	table.Lock(0, blkno)

	snapshot := table.pool.header(blkno).state.load()

	resultCh := make(chan state, 1)
	go func() {
		resultCh <- table.waitForChangeCount(1, blkno, snapshot)
	}()

	time.Sleep(10 * time.Millisecond)
	table.BlockReads(0, blkno)
	table.Unlock(0, blkno)

	select {
	case got := <-resultCh:
		assert.Greater(t, got.changeCount(), snapshot.changeCount())
	case <-time.After(time.Second):
		t.Fatal("waitForChangeCount never observed the advanced count")
	}
	require.False(t, table.pool.header(blkno).state.load().locked())
}
