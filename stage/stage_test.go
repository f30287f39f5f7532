package stage

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/sim"
)

type hookRecorder struct {
	mu   sync.Mutex
	ctxs []sim.HookCtx
}

func (r *hookRecorder) Func(ctx sim.HookCtx) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctxs = append(r.ctxs, ctx)
}

func (r *hookRecorder) at(pos *sim.HookPos) []sim.HookCtx {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ctxs []sim.HookCtx
	for _, ctx := range r.ctxs {
		if ctx.Pos == pos {
			ctxs = append(ctxs, ctx)
		}
	}

	return ctxs
}

const catProject = `
sprite("Cat", {x = 10, y = 20, costumes = {"idle", "walk"},
  variables = {score = 0}})

when_clicked(function()
  move(10)
  next_costume()
end)

when_clicked(function()
  change_var("score", 1)
end)

when_broadcast("jump", function()
  change_y(5)
end)

when_key("space", function()
  broadcast("jump")
end)

sprite("Dog", {x = 100, y = 0})

when_clicked(function()
  turn_right(90)
end)

stage()
variables({level = 1})
`

var _ = Describe("Stage", func() {
	var (
		s        *Stage
		recorder *hookRecorder
	)

	build := func(source string) {
		var err error
		s, err = MakeBuilder().
			WithTimeAcceleration(10).
			Build(source)
		Expect(err).ToNot(HaveOccurred())

		recorder = &hookRecorder{}
		s.AcceptHook(recorder)
		s.Renderer().AcceptHook(recorder)
	}

	AfterEach(func() {
		if s != nil {
			s.Close()
		}
	})

	It("should declare actors", func() {
		build(catProject)

		Expect(s.Actors()).To(HaveLen(3))
		Expect(s.StageActor().Name()).To(Equal(StageName))

		cat, found := s.Actor("Cat")
		Expect(found).To(BeTrue())

		st := cat.State()
		Expect(st.X).To(Equal(10.0))
		Expect(st.Y).To(Equal(20.0))
		Expect(st.Direction).To(Equal(90.0))
		Expect(st.CostumeName).To(Equal("idle"))
		Expect(st.Bounds).To(Equal(sim.Rect{
			Left: -10, Right: 30, Top: 40, Bottom: 0,
		}))
		Expect(st.Variables).To(HaveKeyWithValue("score", 0.0))

		level, found := s.StageActor().Variable("level")
		Expect(found).To(BeTrue())
		Expect(level).To(Equal(1.0))

		_, found = s.Actor("Bird")
		Expect(found).To(BeFalse())
	})

	It("should report load errors", func() {
		_, err := MakeBuilder().Build(`sprite(`)
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().Build(`sprite("A") sprite("A")`)
		Expect(err).To(HaveOccurred())
	})

	It("should start one thread per matching script", func() {
		build(catProject)
		s.Start()

		threads := s.Dispatch(sim.Hat{Kind: sim.HatClicked}, "Cat")
		Expect(threads).To(HaveLen(2))

		for _, t := range threads {
			Expect(t.Actor().Name()).To(Equal("Cat"))
			Expect(t.Hat()).To(Equal(sim.Hat{Kind: sim.HatClicked}))
		}

		Eventually(func() bool {
			return threads[0].Done() && threads[1].Done()
		}).Should(BeTrue())

		cat, _ := s.Actor("Cat")
		Expect(cat.State().X).To(BeNumerically("~", 20, 1e-9))
		Expect(cat.State().CostumeName).To(Equal("walk"))
		score, _ := cat.Variable("score")
		Expect(score).To(Equal(1.0))

		dog, _ := s.Actor("Dog")
		Expect(dog.State().Direction).To(Equal(90.0))
	})

	It("should fire the done hook after the thread is done", func() {
		build(catProject)

		var doneAtHook []bool
		s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == sim.HookPosThreadDone {
				doneAtHook = append(doneAtHook, ctx.Item.(sim.Thread).Done())
			}
		}))

		s.Start()
		s.Dispatch(sim.Hat{Kind: sim.HatClicked}, "Dog")

		Eventually(func() int {
			return len(recorder.at(sim.HookPosThreadDone))
		}).Should(Equal(1))

		s.StopAll()
		Expect(doneAtHook).To(Equal([]bool{true}))
		Expect(recorder.at(sim.HookPosThreadStart)).To(HaveLen(1))
	})

	It("should run primitives through hooks and middleware", func() {
		build(catProject)

		var mu sync.Mutex
		var opcodes []string
		s.UsePrimitiveMiddleware(sim.PrimitiveMiddlewareFunc(
			func(next sim.PrimitiveFunc) sim.PrimitiveFunc {
				return func(call *sim.PrimitiveCall) {
					mu.Lock()
					opcodes = append(opcodes, call.Opcode)
					mu.Unlock()
					next(call)
				}
			}))

		s.Start()
		threads := s.Dispatch(sim.Hat{Kind: sim.HatClicked}, "Dog")
		Eventually(threads[0].Done).Should(BeTrue())

		mu.Lock()
		Expect(opcodes).To(Equal([]string{"motion_turnright"}))
		mu.Unlock()

		before := recorder.at(sim.HookPosBeforePrimitive)
		after := recorder.at(sim.HookPosAfterPrimitive)
		Expect(before).To(HaveLen(1))
		Expect(after).To(HaveLen(1))
		Expect(after[0].Item.(*sim.PrimitiveCall).Actor.Name()).To(Equal("Dog"))
	})

	It("should start broadcast receivers from scripts", func() {
		build(catProject)
		s.Start()

		s.Dispatch(sim.Hat{Kind: sim.HatKey, Field: "space"}, "")

		cat, _ := s.Actor("Cat")
		Eventually(func() float64 { return cat.State().Y }).
			Should(BeNumerically("~", 25, 1e-9))

		broadcasts := recorder.at(sim.HookPosBroadcast)
		Expect(broadcasts).To(HaveLen(1))
		Expect(broadcasts[0].Item).To(Equal("jump"))
	})

	It("should restart a running script", func() {
		build(`
sprite("Cat")
when_clicked(function()
  forever(function() change_x(1) end)
end)
`)
		s.Start()

		first := s.Dispatch(sim.Hat{Kind: sim.HatClicked}, "")
		second := s.Dispatch(sim.Hat{Kind: sim.HatClicked}, "")

		Expect(first[0].Done()).To(BeTrue())
		Expect(second[0].Done()).To(BeFalse())
		Expect(s.Threads()).To(HaveLen(1))
	})

	It("should stop all threads", func() {
		build(`
sprite("Cat")
when_flag(function()
  forever(function() move(1) end)
end)
`)
		s.Start()
		Expect(s.Running()).To(BeTrue())
		Expect(s.Threads()).To(HaveLen(1))

		s.StopAll()

		Expect(s.Running()).To(BeFalse())
		Expect(s.Threads()).To(BeEmpty())
		Expect(recorder.at(sim.HookPosRunStart)).To(HaveLen(1))
		Expect(recorder.at(sim.HookPosRunStop)).To(HaveLen(1))
	})

	It("should stop from a script", func() {
		build(`
sprite("Cat")
when_flag(function()
  stop_all()
  move(100)
end)
`)
		s.Start()

		Eventually(s.Running).Should(BeFalse())

		cat, _ := s.Actor("Cat")
		Expect(cat.State().X).To(Equal(0.0))
	})

	It("should wait in virtual time", func() {
		build(`
sprite("Cat")
when_flag(function()
  wait(1)
  set_var("waited", timer())
end)
`)
		s.Start()

		cat, _ := s.Actor("Cat")
		start := time.Now()
		Eventually(func() bool {
			_, ok := cat.Variable("waited")
			return ok
		}).Should(BeTrue())

		Expect(time.Since(start)).To(BeNumerically("<", 900*time.Millisecond))

		waited, _ := cat.Variable("waited")
		Expect(waited).To(BeNumerically(">=", 1.0))
	})

	It("should draw with the pen", func() {
		build(`
sprite("Pen")
when_flag(function()
  pen_down()
  go_to(10, 0)
  pen_up()
  go_to(20, 0)
  pen_clear()
end)
`)
		s.Start()

		Eventually(func() int {
			return len(recorder.at(sim.HookPosPenClear))
		}).Should(Equal(1))

		points := recorder.at(sim.HookPosPenPoint)
		Expect(points).To(HaveLen(1))

		lines := recorder.at(sim.HookPosPenLine)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0].Item).To(Equal(sim.PenLine{
			From:  sim.Point{X: 0, Y: 0},
			To:    sim.Point{X: 10, Y: 0},
			Color: "#0000ff",
			Size:  1,
		}))
	})

	It("should show and remove speech bubbles", func() {
		build(`
sprite("Cat")
when_flag(function()
  say("Hello", 0.2)
end)
`)
		s.Start()

		Eventually(func() int {
			return len(recorder.at(sim.HookPosSkinDestroy))
		}).Should(Equal(1))

		created := recorder.at(sim.HookPosSkinCreate)
		Expect(created).To(HaveLen(1))

		skin := created[0].Item.(sim.Skin)
		Expect(skin.Name).To(Equal("Hello"))
		Expect(skin.Owner).To(Equal("Cat"))
		Expect(recorder.at(sim.HookPosSkinDestroy)[0].Item.(sim.Skin).ID).
			To(Equal(skin.ID))
	})

	It("should ask hooks for answers", func() {
		build(`
sprite("Cat")
when_flag(function()
  local name = ask("What is your name?")
  set_var("name", name)
end)
`)
		s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos != sim.HookPosAnswerRequested {
				return
			}

			q := ctx.Item.(*sim.Question)
			q.Answer = "Tom"
			q.Answered = true
		}))

		s.Start()

		cat, _ := s.Actor("Cat")
		Eventually(func() any {
			v, _ := cat.Variable("name")
			return v
		}).Should(Equal("Tom"))

		questions := recorder.at(sim.HookPosQuestion)
		Expect(questions).To(HaveLen(1))
		Expect(questions[0].Item.(*sim.Question).Text).
			To(Equal("What is your name?"))
	})

	It("should keep script errors inside the thread", func() {
		build(`
sprite("Cat")
when_flag(function()
  error("boom")
end)
`)
		s.Start()

		Eventually(func() int {
			return len(recorder.at(sim.HookPosThreadDone))
		}).Should(Equal(1))
		Expect(s.Running()).To(BeTrue())
	})
})

var _ = Describe("Actor", func() {
	var s *Stage

	BeforeEach(func() {
		var err error
		s, err = MakeBuilder().Build(`
sprite("Ball", {x = 0, y = 0, width = 20, height = 20,
  variables = {speed = 3}})
`)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		s.Close()
	})

	It("should move and touch the edge", func() {
		ball, _ := s.Actor("Ball")

		ball.SetPosition(235, 0)

		st := ball.State()
		Expect(st.X).To(Equal(235.0))
		Expect(st.TouchingEdge).To(BeTrue())
		Expect(st.Bounds.Right).To(Equal(245.0))
	})

	It("should normalize directions", func() {
		ball, _ := s.Actor("Ball")

		ball.SetDirection(270)
		Expect(ball.State().Direction).To(Equal(-90.0))

		ball.SetDirection(-180)
		Expect(ball.State().Direction).To(Equal(180.0))
	})

	It("should only set declared variables", func() {
		ball, _ := s.Actor("Ball")

		Expect(ball.SetVariable("speed", 5.0)).To(Succeed())
		speed, _ := ball.Variable("speed")
		Expect(speed).To(Equal(5.0))
		Expect(ball.SetVariable("mass", 1.0)).To(MatchError(ErrNoVariable))
	})

	It("should keep old snapshots unchanged", func() {
		ball, _ := s.Actor("Ball")

		before := ball.State()
		ball.SetPosition(50, 60)

		Expect(before.X).To(Equal(0.0))
		Expect(ball.State().X).To(Equal(50.0))
	})

	It("should bounce on the edge", func() {
		ball := s.actorIndex["Ball"]
		ball.SetPosition(235, 0)

		s.mu.Lock()
		ball.bounceOnEdge()
		s.mu.Unlock()

		st := ball.State()
		Expect(st.Direction).To(BeNumerically("~", -90, 1e-9))
		Expect(st.Bounds.Right).To(BeNumerically("~", 240, 1e-9))
	})
})
