package sim

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SequentialIDGenerator", func() {
	It("should count from one", func() {
		g := NewSequentialIDGenerator("e")

		Expect(g.Generate()).To(Equal("e1"))
		Expect(g.Generate()).To(Equal("e2"))
	})

	It("should not repeat IDs across goroutines", func() {
		g := NewSequentialIDGenerator("")
		ids := make(chan string, 100)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					ids <- g.Generate()
				}
			}()
		}

		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			Expect(seen).ToNot(HaveKey(id))
			seen[id] = true
		}

		Expect(seen).To(HaveLen(100))
	})
})
