package transport_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/transport"
)

var _ = Describe("IDAllocator", func() {
	It("hands out capacity distinct ids and then refuses", func() {
		ids := transport.NewIDAllocator(16)
		seen := make(map[transport.ConnID]struct{})

		for i := 0; i < 16; i++ {
			id, ok := ids.Allocate()
			Expect(ok).To(BeTrue())
			Expect(id).NotTo(BeZero())
			Expect(seen).NotTo(HaveKey(id))
			seen[id] = struct{}{}
		}

		_, ok := ids.Allocate()
		Expect(ok).To(BeFalse())
		Expect(ids.InUse()).To(Equal(16))
	})

	It("always returns the lowest free id", func() {
		ids := transport.NewIDAllocator(8)

		for i := 1; i <= 4; i++ {
			id, ok := ids.Allocate()
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(transport.ConnID(i)))
		}

		ids.Release(2)

		id, ok := ids.Allocate()
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(transport.ConnID(2)))
	})

	It("admits again after a release", func() {
		ids := transport.NewIDAllocator(transport.DefaultMaxConnections)
		Expect(ids.Capacity()).To(Equal(1023))

		var last transport.ConnID
		for i := 0; i < ids.Capacity(); i++ {
			id, ok := ids.Allocate()
			Expect(ok).To(BeTrue())
			last = id
		}

		_, ok := ids.Allocate()
		Expect(ok).To(BeFalse())

		ids.Release(last)

		id, ok := ids.Allocate()
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(last))
	})

	It("refuses everything with no capacity", func() {
		_, ok := transport.NewIDAllocator(0).Allocate()
		Expect(ok).To(BeFalse())
	})

	It("panics when an id is released twice", func() {
		ids := transport.NewIDAllocator(4)
		id, _ := ids.Allocate()
		ids.Release(id)

		Expect(func() { ids.Release(id) }).To(Panic())
		Expect(func() { ids.Release(0) }).To(Panic())
		Expect(func() { ids.Release(99) }).To(Panic())
	})

	It("is safe to use concurrently", func() {
		ids := transport.NewIDAllocator(64)

		var wg sync.WaitGroup
		for n := 0; n < 8; n++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for i := 0; i < 1000; i++ {
					id, ok := ids.Allocate()
					Expect(ok).To(BeTrue())
					ids.Release(id)
				}
			}()
		}

		wg.Wait()
		Expect(ids.InUse()).To(Equal(0))
	})
})
