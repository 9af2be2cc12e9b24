package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DefaultMaxConnections is the default identity pool capacity. Together
// with the reserved slot 0 it fills a 1024 bit set.
const DefaultMaxConnections = 1023

// ErrAllocatorExhausted is logged when a connection is turned away because
// every identity is in use.
var ErrAllocatorExhausted = errors.New("connection identities exhausted")

// ConnID identifies a live connection. IDs are reused once released.
type ConnID uint64

// IDAllocator hands out the lowest free ConnID from a fixed size pool. It
// is the server's only admission control: when Allocate fails the
// connection is refused.
//
// IDAllocator is safe for concurrent use.
type IDAllocator struct {
	mu       sync.Mutex
	slots    *bitset.BitSet
	capacity uint
	inUse    uint
}

// NewIDAllocator creates a pool of capacity identities, numbered 1 to
// capacity. Slot 0 is reserved and never issued.
func NewIDAllocator(capacity uint) *IDAllocator {
	slots := bitset.New(capacity + 1)
	slots.Set(0)

	return &IDAllocator{
		slots:    slots,
		capacity: capacity,
	}
}

// Allocate marks the lowest unused id as used and returns it. ok is false
// when the pool is saturated.
func (a *IDAllocator) Allocate() (id ConnID, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, found := a.slots.NextClear(1)
	if !found || slot > a.capacity {
		return 0, false
	}

	a.slots.Set(slot)
	a.inUse++

	return ConnID(slot), true
}

// Release returns id to the pool. Releasing an id that is not allocated
// means a connection was released twice, which we never recover from.
func (a *IDAllocator) Release(id ConnID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot := uint(id)
	if slot == 0 || slot > a.capacity || !a.slots.Test(slot) {
		panic(fmt.Sprintf("transport: release of unallocated connection id %d", id))
	}

	a.slots.Clear(slot)
	a.inUse--
}

// InUse returns how many ids are currently allocated.
func (a *IDAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return int(a.inUse)
}

func (a *IDAllocator) Capacity() int {
	return int(a.capacity)
}
