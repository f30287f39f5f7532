package plan_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/plan"
	"github.com/sarchlab/itch/report"
	"github.com/sarchlab/itch/stage"
)

const catProject = `
sprite("Cat", {x = 0, y = 0, variables = {score = 0}})

when_clicked(function()
  move(10)
  change_var("score", 1)
end)

when_key("space", function()
  say("hi", 0.5)
end)
`

var _ = Describe("Evaluation", func() {
	var (
		recorder *report.Recorder
		reporter *report.Reporter
		ev       *plan.Evaluation
	)

	BeforeEach(func() {
		s, err := stage.MakeBuilder().Build(catProject)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(s.Close)

		recorder = &report.Recorder{}
		reporter = report.NewReporter(recorder, nil)

		c := judge.NewContext(
			judge.WithSimulation(s),
			judge.WithReporter(reporter),
			judge.WithAcceleration(judge.Acceleration{Factor: 10}),
		)
		ev = plan.NewEvaluation(c, reporter)
	})

	run := func() judge.Outcome {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		o, err := ev.Run(ctx)
		Expect(err).ToNot(HaveOccurred())

		return o
	}

	It("should accept a run whose tests pass", func() {
		ev.Root().ClickSprite("Cat").Wait(100 * time.Millisecond).End()
		ev.Test("the cat moves", "moved", plan.HasMoved("Cat"))
		ev.Group("Variables", func() {
			ev.Test("the score counts clicks", "1", plan.VariableEquals("Cat", "score", 1))
		})

		o := run()

		Expect(o.Status).To(Equal(report.StatusCorrect))
		Expect(ev.Results()).To(HaveLen(2))
		Expect(ev.Results()[0].Group).To(Equal(plan.DefaultGroup))
		Expect(ev.Results()[1].Group).To(Equal("Variables"))
		Expect(ev.Results()[1].Accepted).To(BeTrue())

		Expect(recorder.Names()).To(HaveExactElements(
			report.CmdStartJudgement,
			report.CmdStartTab,
			report.CmdStartContext,
			report.CmdStartTestcase,
			report.CmdStartTest,
			report.CmdCloseTest,
			report.CmdCloseTestcase,
			report.CmdCloseContext,
			report.CmdCloseTab,
			report.CmdStartTab,
			report.CmdStartContext,
			report.CmdStartTestcase,
			report.CmdStartTest,
			report.CmdCloseTest,
			report.CmdCloseTestcase,
			report.CmdCloseContext,
			report.CmdCloseTab,
			report.CmdCloseJudgement,
		))
		Expect(reporter.Finished()).To(BeTrue())
	})

	It("should turn a failed test into a wrong answer", func() {
		ev.Root().Wait(100 * time.Millisecond).End()
		ev.Test("the cat moves", "moved", plan.HasMoved("Cat"))

		o := run()

		Expect(o.Status).To(Equal(report.StatusWrong))
		Expect(reporter.Status()).To(Equal(report.StatusWrong))
		Expect(ev.Results()[0].Generated).To(Equal("did not move"))
	})

	It("should stop the run at a failed assertion", func() {
		ev.Root().
			Then(ev.Assert("the cat moves first", "moved", plan.HasMoved("Cat"))).
			ClickSprite("Cat").
			End()
		ev.Test("never evaluated", "moved", plan.HasMoved("Cat"))

		o := run()

		Expect(o.Status).To(Equal(report.StatusWrong))
		Expect(errors.Is(o.Err, judge.ErrFatalAssertion)).To(BeTrue())
		Expect(ev.Results()).To(HaveLen(1))
		Expect(ev.Results()[0].Description).To(Equal("the cat moves first"))
		Expect(ev.Context().Log().EventsOfType("click")).To(BeEmpty())
	})

	It("should continue after a passing assertion", func() {
		ev.Root().
			ClickSprite("Cat").
			Then(ev.Assert("the cat moved", "moved", plan.HasMoved("Cat"))).
			PressKey("space").
			Wait(700 * time.Millisecond).
			End()
		ev.Test("the cat talks", "said hi", plan.SaidFor("hi", 500, 150))

		o := run()

		Expect(o.Status).To(Equal(report.StatusCorrect))
		Expect(ev.Results()).To(HaveLen(2))
		Expect(ev.Results()[1].Accepted).To(BeTrue())
	})

	It("should close the judgement when there is nothing to run", func() {
		recorder = &report.Recorder{}
		reporter = report.NewReporter(recorder, nil)
		ev = plan.NewEvaluation(judge.NewContext(judge.WithReporter(reporter)), reporter)
		ev.Root().End()

		_, err := ev.Run(context.Background())

		Expect(err).To(MatchError(judge.ErrNoSimulation))
		Expect(reporter.Status()).To(Equal(report.StatusInternalError))
		Expect(recorder.Names()).To(HaveExactElements(
			report.CmdStartJudgement,
			report.CmdEscalateStatus,
			report.CmdAppendMessage,
			report.CmdCloseJudgement,
		))
	})
})
