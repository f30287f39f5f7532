package stage

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		var f = 1 * KHz
		Expect(f.Period()).To(BeNumerically("~", 1e-3, 1e-12))
	})

	It("should panic on zero frequency", func() {
		var f Freq
		Expect(func() { f.Period() }).To(Panic())
	})

	It("should scale the interval with the acceleration", func() {
		var f = 10 * Hz
		Expect(f.Interval(1)).To(Equal(100 * time.Millisecond))
		Expect(f.Interval(2)).To(Equal(50 * time.Millisecond))
		Expect(f.Interval(0.5)).To(Equal(200 * time.Millisecond))
	})

	It("should reject invalid accelerations", func() {
		Expect(func() { DefaultFreq.Interval(0) }).To(Panic())
	})

	It("should count cycles", func() {
		Expect(DefaultFreq.Cycle(1)).To(Equal(uint64(30)))
		Expect(DefaultFreq.Cycle(0.5)).To(Equal(uint64(15)))
	})

	It("should get the n cycles later", func() {
		var f = 10 * Hz
		Expect(f.NCyclesLater(3, 1.0)).To(BeNumerically("~", 1.3, 1e-12))
	})
})
