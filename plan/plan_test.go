package plan_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/plan"
	"github.com/sarchlab/itch/report"
	"github.com/sarchlab/itch/stage"
)

const catPlan = `
name: cat
project: cat.lua
acceleration:
  factor: 10
timeout: 5s
schedule:
  - click: Cat
  - parallel:
      - - wait: 100
      - - wait_broadcast: never
  - assert:
      description: the cat moved
      kind: moved
      sprite: Cat
  - key: space
    timeout: 2s
  - wait: 700ms
  - end: true
tests:
  - description: the score counts clicks
    group: Variables
    kind: variable
    sprite: Cat
    name: score
    value: 1
  - description: the cat talks
    kind: said
    text: hi
    duration: 500ms
    tolerance: 150
  - description: the cat stays away from the edge
    kind: safe_from_edge
    sprite: Cat
`

func newEvaluation(source string) *plan.Evaluation {
	s, err := stage.MakeBuilder().Build(source)
	Expect(err).ToNot(HaveOccurred())
	DeferCleanup(s.Close)

	reporter := report.NewReporter(&report.Recorder{}, nil)
	c := judge.NewContext(
		judge.WithSimulation(s),
		judge.WithReporter(reporter),
		judge.WithAcceleration(judge.Acceleration{Factor: 10}),
	)

	return plan.NewEvaluation(c, reporter)
}

var _ = Describe("Plan", func() {
	It("should parse durations as strings or milliseconds", func() {
		p, err := plan.Parse([]byte(catPlan))
		Expect(err).ToNot(HaveOccurred())

		Expect(p.Name).To(Equal("cat"))
		Expect(p.Timeout.Std()).To(Equal(5 * time.Second))
		Expect(p.Acceleration).To(Equal(judge.Acceleration{Factor: 10}))
		Expect(p.Schedule[1].Parallel[0][0].Wait.Std()).To(Equal(100 * time.Millisecond))
		Expect(p.Schedule[4].Wait.Std()).To(Equal(700 * time.Millisecond))
		Expect(p.Options()).To(HaveLen(2))
	})

	It("should reject malformed durations", func() {
		_, err := plan.Parse([]byte("timeout: soon\n"))
		Expect(err).To(MatchError(ContainSubstring("parse plan")))
	})

	It("should build the same tree as the fluent API", func() {
		p, err := plan.Parse([]byte(`
schedule:
  - click: Cat
  - hold: {key: right, for: 1s}
    async: true
  - parallel:
      - - wait_move: Cat
      - - wait_touch: {sprite: Cat, target: edge}
        - position: {sprite: Cat, x: 0, y: 0}
  - variable: {name: lives, value: 3}
    timeout: 500ms
    on_timeout: continue
  - end: true
`))
		Expect(err).ToNot(HaveOccurred())

		fromPlan := plan.NewEvaluation(nil, nil)
		Expect(p.Apply(fromPlan)).To(Succeed())

		fluent := plan.NewEvaluation(nil, nil)
		held := fluent.Root().ClickSprite("Cat").HoldKey("right", time.Second).Async()
		moved := held.WaitForSpriteMove("Cat")
		placed := held.WaitForSpriteTouch("Cat", judge.EdgeTarget).SetPosition("Cat", 0, 0)
		held.Join(moved, placed).
			SetVariable("", "lives", 3).WithTimeout(500 * time.Millisecond).
			End()

		Expect(fromPlan.Schedule().Snapshot()).To(Equal(fluent.Schedule().Snapshot()))
	})

	DescribeTable("should reject invalid steps",
		func(source string) {
			p, err := plan.Parse([]byte(source))
			Expect(err).ToNot(HaveOccurred())

			err = p.Apply(plan.NewEvaluation(nil, nil))
			Expect(errors.Is(err, plan.ErrInvalidPlan)).To(BeTrue())
		},
		Entry("no action", "schedule:\n  - async: true\n"),
		Entry("two actions", "schedule:\n  - click: Cat\n    key: a\n"),
		Entry("empty branch", "schedule:\n  - parallel:\n      - []\n"),
		Entry("unknown on_timeout", "schedule:\n  - click: Cat\n    on_timeout: retry\n"),
		Entry("unknown test kind", "tests:\n  - kind: flies\n"),
		Entry("test without sprite", "tests:\n  - kind: moved\n"),
		Entry("variable without name", "tests:\n  - kind: variable\n"),
	)

	It("should resolve the project next to the plan file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "plan.yaml")
		Expect(os.WriteFile(path, []byte(catPlan), 0o600)).To(Succeed())

		p, err := plan.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(p.ProjectPath()).To(Equal(filepath.Join(dir, "cat.lua")))

		_, err = plan.Load(filepath.Join(dir, "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("read plan")))
	})

	It("should negate checks and override expectations", func() {
		check, expected, err := plan.TestSpec{
			Kind:     plan.KindBroadcastSent,
			Name:     "go",
			Expected: "a go broadcast",
			Not:      true,
		}.Check()
		Expect(err).ToNot(HaveOccurred())
		Expect(expected).To(Equal("not a go broadcast"))

		_, ok := check(newEvaluation(catProject).Context().Log())
		Expect(ok).To(BeTrue())
	})

	It("should judge a project with a plan", func() {
		p, err := plan.Parse([]byte(catPlan))
		Expect(err).ToNot(HaveOccurred())

		ev := newEvaluation(catProject)
		Expect(p.Apply(ev)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		o, err := ev.Run(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(o.Status).To(Equal(report.StatusCorrect))

		results := ev.Results()
		Expect(results).To(HaveLen(4))
		Expect(results[0].Description).To(Equal("the cat moved"))

		for _, r := range results {
			Expect(r.Accepted).To(BeTrue(), r.Description)
		}
	})
})
