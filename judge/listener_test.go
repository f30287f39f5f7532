package judge_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/sim"
)

var _ = Describe("Listener", func() {
	var (
		mockCtrl *gomock.Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	thread := func(id uint64, done bool) *MockThread {
		t := NewMockThread(mockCtrl)
		t.EXPECT().ID().Return(id).AnyTimes()
		t.EXPECT().Done().Return(done).AnyTimes()

		return t
	}

	Context("waiting for threads", func() {
		It("should resolve at once without threads", func() {
			l := judge.NewThreadListener(nil)
			l.Sweep()

			Expect(l.Done()).To(BeTrue())
		})

		It("should count threads done before registration", func() {
			l := judge.NewThreadListener([]sim.Thread{thread(1, true), thread(2, false)})
			l.Sweep()

			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosThreadDone, thread(2, true))

			Expect(l.Done()).To(BeTrue())
		})

		It("should resolve when the last thread finishes", func() {
			t1, t2 := thread(1, false), thread(2, false)
			l := judge.NewThreadListener([]sim.Thread{t1, t2})
			l.Sweep()

			l.Notify(sim.HookPosThreadDone, t1)
			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosThreadDone, thread(3, true))
			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosThreadDone, t2)
			Expect(l.Done()).To(BeTrue())
		})

		It("should ignore other signals", func() {
			t1 := thread(1, false)
			l := judge.NewThreadListener([]sim.Thread{t1})

			l.Notify(sim.HookPosThreadStart, t1)
			l.Notify(sim.HookPosBroadcast, "go")

			Expect(l.Done()).To(BeFalse())
		})
	})

	Context("waiting for a broadcast", func() {
		It("should resolve on the first matching broadcast", func() {
			l := judge.NewSignalListener("go")

			l.Notify(sim.HookPosBroadcast, "stop")
			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosStep, uint64(1))
			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosBroadcast, "go")
			Expect(l.Done()).To(BeTrue())

			name, err := l.Received()
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("go"))
		})
	})

	Context("waiting for a step", func() {
		It("should resolve on the first step the predicate holds", func() {
			count := 0
			l := judge.NewStepListener(func() bool {
				count++
				return count == 3
			})

			l.Check()
			Expect(l.Done()).To(BeFalse())

			l.Notify(sim.HookPosBroadcast, "go")
			Expect(count).To(Equal(1))

			l.Notify(sim.HookPosStep, uint64(1))
			l.Notify(sim.HookPosStep, uint64(2))
			Expect(l.Done()).To(BeTrue())

			l.Notify(sim.HookPosStep, uint64(3))
			Expect(count).To(Equal(3))
		})
	})

	Context("in a context", func() {
		It("should drop listeners once they are done", func() {
			c := judge.NewContext()
			first := judge.NewSignalListener("a")
			second := judge.NewSignalListener("b")
			c.Listen(first)
			c.Listen(second)

			c.Notify(sim.HookPosBroadcast, "a")

			Expect(first.Done()).To(BeTrue())
			Expect(c.NumListeners()).To(Equal(1))
		})

		It("should notify a stable snapshot", func() {
			c := judge.NewContext()
			late := judge.NewSignalListener("a")

			var calls int
			c.Listen(judge.NewFuncListener(func(*sim.HookPos, any) bool {
				calls++
				c.Listen(late)

				return true
			}))

			c.Notify(sim.HookPosBroadcast, "a")

			Expect(calls).To(Equal(1))
			Expect(late.Done()).To(BeFalse())
			Expect(c.NumListeners()).To(Equal(1))
		})
	})
})
