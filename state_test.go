package pagelock

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateWithLockedIdempotency(t *testing.T) {
	seed := time.Now().UTC().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 100; i++ {
		s := state(rng.Uint64())

		locked := s.withLocked(true)
		assert.True(t, locked.locked())
		assert.Equal(t, s.noRead(), locked.noRead())
		assert.Equal(t, s.changeCount(), locked.changeCount())
		assert.Equal(t, s.waiterHead(), locked.waiterHead())

		unlocked := s.withLocked(false)
		assert.False(t, unlocked.locked())
		assert.Equal(t, s.noRead(), unlocked.noRead())
		assert.Equal(t, s.changeCount(), unlocked.changeCount())
		assert.Equal(t, s.waiterHead(), unlocked.waiterHead())
	}
}

func TestStateWithWaiterHeadIdempotency(t *testing.T) {
	seed := time.Now().UTC().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 100; i++ {
		s := state(rng.Uint64())
		slot := uint32(rng.Intn(int(InvalidSlot)))

		next := s.withWaiterHead(slot)
		assert.Equal(t, slot, next.waiterHead())
		assert.Equal(t, s.locked(), next.locked())
		assert.Equal(t, s.noRead(), next.noRead())
		assert.Equal(t, s.changeCount(), next.changeCount())
	}
}

func TestStateIncrementedChangeCountLeavesOtherFieldsAlone(t *testing.T) {
	var s state
	s = s.withLocked(true).withNoRead(true).withWaiterHead(7)
	next := s.withIncrementedChangeCount()
	assert.Equal(t, s.changeCount()+1, next.changeCount())
	assert.True(t, next.locked())
	assert.True(t, next.noRead())
	assert.Equal(t, uint32(7), next.waiterHead())
}

func TestTryLockBit(t *testing.T) {
	var p pageState
	prev, acquired := p.tryLockBit()
	assert.True(t, acquired)
	assert.False(t, prev.locked())

	prev, acquired = p.tryLockBit()
	assert.False(t, acquired, "second try_lock on an already-locked word must fail")
	assert.True(t, prev.locked())
}

func TestFetchOrNoRead(t *testing.T) {
	var p pageState
	p.word.Store(uint64(state(0).withLocked(true)))

	next := p.fetchOrNoRead()
	assert.False(t, next.noRead(), "fetchOrNoRead returns the state observed before the OR")
	assert.True(t, p.load().noRead())
	assert.True(t, p.load().locked())
}

func TestInvalidSlotOutOfWaiterRange(t *testing.T) {
	var s state
	s = s.withWaiterHead(InvalidSlot)
	assert.Equal(t, InvalidSlot, s.waiterHead())
}
