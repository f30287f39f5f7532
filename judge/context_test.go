package judge_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/report"
)

var _ = Describe("Context", func() {
	var (
		now      time.Time
		recorder *report.Recorder
		reporter *report.Reporter
		c        *judge.Context
	)

	BeforeEach(func() {
		now = time.Unix(1000, 0)
		recorder = &report.Recorder{}
		reporter = report.NewReporter(recorder, nil)
		c = judge.NewContext(
			judge.WithClock(func() time.Time { return now }),
			judge.WithReporter(reporter),
			judge.WithAcceleration(judge.Acceleration{Factor: 2}),
		)
	})

	It("should scale timestamps by the time factor", func() {
		now = now.Add(100 * time.Millisecond)
		Expect(c.Timestamp()).To(BeNumerically("~", 200, 1e-9))
	})

	It("should keep timestamps continuous when the acceleration changes", func() {
		now = now.Add(100 * time.Millisecond)
		c.SetAcceleration(judge.Acceleration{Factor: 1})
		Expect(c.Timestamp()).To(BeNumerically("~", 200, 1e-9))

		now = now.Add(100 * time.Millisecond)
		Expect(c.Timestamp()).To(BeNumerically("~", 300, 1e-9))
		Expect(c.AccelerateEvent(time.Second)).To(Equal(time.Second))
	})

	It("should use the event factor for delays", func() {
		c.SetAcceleration(judge.Acceleration{Factor: 2, Event: 10, Time: 4})

		Expect(c.AccelerateEvent(time.Second)).To(Equal(100 * time.Millisecond))
		Expect(c.AccelerateTime()).To(Equal(4.0))
	})

	It("should hand out answers in order", func() {
		c.QueueAnswers("a", "b")

		a, ok := c.NextAnswer()
		Expect(ok).To(BeTrue())
		Expect(a).To(Equal("a"))

		b, _ := c.NextAnswer()
		Expect(b).To(Equal("b"))

		_, ok = c.NextAnswer()
		Expect(ok).To(BeFalse())
	})

	It("should refuse to run without a simulation", func() {
		_, err := c.Run(context.Background(), judge.NewSchedule().Root())
		Expect(err).To(MatchError(judge.ErrNoSimulation))
	})

	Context("when terminated", func() {
		It("should backfill dangling events once", func() {
			e := c.Record(execlog.EventClick, nil)
			Expect(e.Next()).To(BeNil())

			now = now.Add(time.Second)
			first := c.Terminate(judge.Outcome{
				Status: report.StatusRuntimeError,
				Err:    errors.New("boom"),
			})
			second := c.Terminate(judge.Outcome{Status: report.StatusTimeLimitExceeded})

			Expect(first).To(BeTrue())
			Expect(second).To(BeFalse())
			Expect(e.Next()).ToNot(BeNil())
			Expect(e.Next().Label).To(Equal("end"))
			Expect(c.Log().DanglingEvents()).To(BeEmpty())

			o, err := c.Finished().Result()
			Expect(err).ToNot(HaveOccurred())
			Expect(o.Status).To(Equal(report.StatusRuntimeError))
			Expect(o.Accepted()).To(BeFalse())
			Expect(c.Terminated()).To(BeTrue())
		})

		It("should escalate unexpected errors", func() {
			c.Terminate(judge.Outcome{
				Status: report.StatusRuntimeError,
				Err:    errors.New("boom"),
			})

			Expect(reporter.Status()).To(Equal(report.StatusRuntimeError))
			Expect(recorder.Names()).To(ContainElements(
				report.CmdEscalateStatus, report.CmdAppendMessage))
			Expect(recorder.Commands()).To(ContainElement(
				HaveField("Message", "boom")))
		})

		It("should stay quiet on fatal assertions", func() {
			c.Terminate(judge.Outcome{
				Status: report.StatusWrong,
				Err:    &judge.FatalAssertionError{Description: "cat moved"},
			})

			Expect(recorder.Commands()).To(BeEmpty())
		})

		It("should not escalate a normal end", func() {
			c.Terminate(judge.Outcome{Status: report.StatusCorrect})

			Expect(recorder.Commands()).To(BeEmpty())
			Expect(reporter.Status()).To(Equal(report.StatusCorrect))
		})

		It("should ignore new listeners", func() {
			c.Terminate(judge.Outcome{Status: report.StatusCorrect})
			c.Listen(judge.NewSignalListener("a"))

			Expect(c.NumListeners()).To(BeZero())
		})
	})
})

var _ = Describe("Errors", func() {
	It("should match the sentinels", func() {
		var err error = &judge.NotFoundError{Kind: "sprite", Name: "Cat"}
		Expect(errors.Is(err, judge.ErrNotFound)).To(BeTrue())
		Expect(err.Error()).To(Equal(`sprite "Cat" not found`))

		err = &judge.TimeoutError{Action: "wait", After: time.Second}
		Expect(errors.Is(err, judge.ErrTimeout)).To(BeTrue())
		Expect(errors.Is(err, judge.ErrNotFound)).To(BeFalse())

		err = &judge.FatalAssertionError{Description: "x"}
		Expect(errors.Is(err, judge.ErrFatalAssertion)).To(BeTrue())
	})
})
