package deferred_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/deferred"
)

var _ = Describe("Deferred", func() {
	var d *deferred.Deferred[int]

	BeforeEach(func() {
		d = deferred.New[int]()
	})

	It("should start pending", func() {
		Expect(d.State()).To(Equal(deferred.Pending))
		Expect(d.IsSettled()).To(BeFalse())
		Consistently(d.Done(), 20*time.Millisecond).ShouldNot(BeClosed())
	})

	It("should resolve once", func() {
		Expect(d.Resolve(1)).To(BeTrue())
		Expect(d.Resolve(2)).To(BeFalse())
		Expect(d.Reject(errors.New("late"))).To(BeFalse())

		v, err := d.Result()
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(1))
		Expect(d.State()).To(Equal(deferred.Resolved))
	})

	It("should reject once", func() {
		boom := errors.New("boom")

		Expect(d.Reject(boom)).To(BeTrue())
		Expect(d.Resolve(3)).To(BeFalse())

		_, err := d.Result()
		Expect(err).To(MatchError(boom))
		Expect(d.State()).To(Equal(deferred.Rejected))
	})

	It("should deliver the same outcome to every reader", func() {
		var wg sync.WaitGroup
		results := make([]int, 8)

		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := d.Wait(context.Background())
				Expect(err).ToNot(HaveOccurred())
				results[i] = v
			}()
		}

		d.Resolve(42)
		wg.Wait()

		late, err := d.Wait(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(late).To(Equal(42))
		Expect(results).To(HaveEach(42))
	})

	It("should stop waiting when the context is done", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := d.Wait(ctx)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(d.State()).To(Equal(deferred.Pending))
	})

	It("should run callbacks registered before and after settling", func() {
		var got []int

		d.Then(func(v int, _ error) { got = append(got, v) })
		d.Resolve(7)
		d.Then(func(v int, _ error) { got = append(got, v*10) })

		Expect(got).To(Equal([]int{7, 70}))
	})

	Context("race", func() {
		It("should settle with the first input to settle", func() {
			slow := deferred.New[int]()
			fast := deferred.New[int]()

			r := deferred.Race(slow, fast)
			fast.Resolve(2)
			slow.Resolve(1)

			v, err := r.Result()
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(2))
		})

		It("should prefer the earliest argument when inputs are already settled", func() {
			boom := errors.New("boom")

			r := deferred.Race(deferred.RejectedWith[int](boom), deferred.ResolvedWith(5))

			Expect(r.State()).To(Equal(deferred.Rejected))
			_, err := r.Result()
			Expect(err).To(MatchError(boom))
		})

		It("should not settle without inputs", func() {
			r := deferred.Race[int]()

			Expect(r.IsSettled()).To(BeFalse())
		})

		It("should report the index of the first input", func() {
			a := deferred.New[string]()
			b := deferred.New[string]()

			first := deferred.Any(a, b)
			b.Reject(errors.New("b failed"))
			a.Resolve("a")

			i, err := first.Result()
			Expect(err).ToNot(HaveOccurred())
			Expect(i).To(Equal(1))
		})
	})
})
