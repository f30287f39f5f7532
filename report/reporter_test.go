package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/report"
)

var _ = Describe("Reporter", func() {
	var (
		recorder *report.Recorder
		r        *report.Reporter
	)

	BeforeEach(func() {
		recorder = &report.Recorder{}
		r = report.NewReporter(recorder, nil)
	})

	It("should emit a well nested stream", func() {
		r.StartJudgement()
		r.StartTab("Feedback")
		r.StartContext("")
		r.StartTestcase("Cat")
		r.StartTest("moves", "true")
		r.CloseTest("true", true)
		r.CloseTestcase(true)
		r.CloseContext(true)
		r.CloseTab(true)
		r.CloseJudgement(true)

		Expect(recorder.Names()).To(Equal([]string{
			report.CmdStartJudgement, report.CmdStartTab, report.CmdStartContext, report.CmdStartTestcase,
			report.CmdStartTest, report.CmdCloseTest, report.CmdCloseTestcase, report.CmdCloseContext,
			report.CmdCloseTab, report.CmdCloseJudgement,
		}))
		Expect(r.Finished()).To(BeTrue())
	})

	It("should open missing parents", func() {
		r.StartTest("moves", "")

		Expect(recorder.Names()).To(Equal([]string{
			report.CmdStartJudgement, report.CmdStartTab, report.CmdStartContext, report.CmdStartTestcase,
			report.CmdStartTest,
		}))
	})

	It("should close an open test before starting the next one", func() {
		r.StartTest("first", "")
		r.StartTest("second", "")

		names := recorder.Names()
		Expect(names[len(names)-3:]).To(Equal([]string{
			report.CmdStartTest, report.CmdCloseTest, report.CmdStartTest,
		}))
	})

	It("should close children when closing a parent", func() {
		r.StartTest("first", "")
		r.CloseTest("", false)
		r.StartTest("second", "")
		r.CloseTab(true)

		commands := recorder.Commands()
		last := commands[len(commands)-4:]

		Expect(last[0].Command).To(Equal(report.CmdCloseTest))
		Expect(last[1].Command).To(Equal(report.CmdCloseTestcase))
		Expect(*last[1].Accepted).To(BeFalse())
		Expect(last[2].Command).To(Equal(report.CmdCloseContext))
		Expect(*last[2].Accepted).To(BeFalse())
		Expect(last[3].Command).To(Equal(report.CmdCloseTab))
		Expect(*last[3].Accepted).To(BeTrue())
	})

	It("should ignore closing a level that is not open", func() {
		r.StartJudgement()
		r.CloseTest("", true)

		Expect(recorder.Names()).To(Equal([]string{report.CmdStartJudgement}))
	})

	It("should escalate to the worst status", func() {
		r.EscalateStatus(report.StatusRuntimeError)
		r.EscalateStatus(report.StatusWrong)
		r.CloseJudgement(false)

		Expect(r.Status()).To(Equal(report.StatusRuntimeError))
		Expect(recorder.Names()).To(Equal([]string{
			report.CmdStartJudgement, report.CmdEscalateStatus, report.CmdEscalateStatus,
			report.CmdCloseJudgement,
		}))
	})

	It("should drop commands after the judgement closed", func() {
		r.CloseJudgement(true)
		r.StartTab("late")
		r.AppendMessage("late")

		Expect(recorder.Names()).To(Equal([]string{
			report.CmdStartJudgement, report.CmdCloseJudgement,
		}))
	})

	It("should remember emitter errors", func() {
		failing := report.EmitterFunc(func(report.Command) error {
			return errors.New("disk full")
		})
		r = report.NewReporter(report.Tee(recorder, failing), nil)

		r.StartJudgement()

		Expect(r.Err()).To(MatchError("disk full"))
		Expect(recorder.Names()).To(Equal([]string{report.CmdStartJudgement}))
	})
})

var _ = Describe("JSONEmitter", func() {
	It("should write one command per line", func() {
		buf := &bytes.Buffer{}
		r := report.NewReporter(report.NewJSONEmitter(buf), nil)

		r.StartJudgement()
		r.EscalateStatus(report.StatusTimeLimitExceeded)
		r.CloseJudgement(false)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[1]).To(MatchJSON(
			`{"command": "escalate-status", "status": "time limit exceeded"}`))

		var closing report.Command
		Expect(json.Unmarshal([]byte(lines[2]), &closing)).To(Succeed())
		Expect(closing.Command).To(Equal(report.CmdCloseJudgement))
		Expect(*closing.Accepted).To(BeFalse())
	})
})

var _ = Describe("Console", func() {
	It("should render tests and the result", func() {
		buf := &bytes.Buffer{}
		r := report.NewReporter(report.NewConsole(buf), nil)

		r.StartTab("Feedback")
		r.StartTest("the cat moves", "")
		r.CloseTest("", true)
		r.StartTest("the cat meows", "")
		r.CloseTest("silent", false)
		r.AppendMessage("try say")
		r.EscalateStatus(report.StatusWrong)
		r.CloseJudgement(false)

		out := buf.String()
		Expect(out).To(ContainSubstring("FEEDBACK"))
		Expect(out).To(ContainSubstring("the cat moves"))
		Expect(out).To(ContainSubstring("silent"))
		Expect(out).To(ContainSubstring("try say"))
		Expect(out).To(ContainSubstring("Wrong"))
	})
})

var _ = Describe("Status", func() {
	It("should order statuses", func() {
		Expect(report.StatusRuntimeError.Worse(report.StatusWrong)).To(BeTrue())
		Expect(report.StatusCorrect.Worse(report.StatusWrong)).To(BeFalse())
		Expect(report.StatusTimeLimitExceeded.Human()).To(Equal("Time limit exceeded"))
	})
})
