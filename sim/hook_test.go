package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		hookable *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hookable = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		hook1 := NewMockHook(mockCtrl)
		hook2 := NewMockHook(mockCtrl)
		ctx := HookCtx{Domain: hookable, Pos: HookPosStep, Item: 3}

		first := hook1.EXPECT().Func(ctx)
		hook2.EXPECT().Func(ctx).After(first)

		hookable.AcceptHook(hook1)
		hookable.AcceptHook(hook2)
		hookable.InvokeHook(ctx)

		Expect(hookable.NumHooks()).To(Equal(2))
		Expect(hookable.Hooks()).To(Equal([]Hook{hook1, hook2}))
	})

	It("should reject duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)

		hookable.AcceptHook(hook)

		Expect(func() { hookable.AcceptHook(hook) }).To(Panic())
	})

	It("should accept plain functions", func() {
		var got []*HookPos
		f := HookFunc(func(ctx HookCtx) { got = append(got, ctx.Pos) })

		hookable.AcceptHook(f)
		hookable.AcceptHook(f)
		hookable.InvokeHook(HookCtx{Pos: HookPosRunStart})

		Expect(got).To(Equal([]*HookPos{HookPosRunStart, HookPosRunStart}))
	})
})

var _ = Describe("Hat", func() {
	It("should match same kind and field", func() {
		Expect(Hat{Kind: HatBroadcast, Field: "go"}.
			Matches(Hat{Kind: HatBroadcast, Field: "go"})).To(BeTrue())
		Expect(Hat{Kind: HatBroadcast, Field: "go"}.
			Matches(Hat{Kind: HatBroadcast, Field: "stop"})).To(BeFalse())
		Expect(Hat{Kind: HatClicked}.
			Matches(Hat{Kind: HatFlag})).To(BeFalse())
	})

	It("should let the any key match every key", func() {
		Expect(Hat{Kind: HatKey, Field: "any"}.
			Matches(Hat{Kind: HatKey, Field: "space"})).To(BeTrue())
	})

	It("should print kind and field", func() {
		Expect(Hat{Kind: HatKey, Field: "space"}.String()).To(Equal("key:space"))
		Expect(Hat{Kind: HatFlag}.String()).To(Equal("flag"))
	})
})

var _ = Describe("MiddlewareHolder", func() {
	It("should wrap later middleware around earlier ones", func() {
		var order []string
		tag := func(name string) PrimitiveMiddleware {
			return PrimitiveMiddlewareFunc(func(next PrimitiveFunc) PrimitiveFunc {
				return func(call *PrimitiveCall) {
					order = append(order, name+">")
					next(call)
					order = append(order, "<"+name)
				}
			})
		}

		holder := &MiddlewareHolder{}
		holder.AddMiddleware(tag("inner"))
		holder.AddMiddleware(tag("outer"))

		f := holder.Chain(func(call *PrimitiveCall) {
			order = append(order, call.Opcode)
		})
		f(&PrimitiveCall{Opcode: "motion_movesteps"})

		Expect(holder.Middlewares()).To(HaveLen(2))
		Expect(order).To(Equal([]string{
			"outer>", "inner>", "motion_movesteps", "<inner", "<outer",
		}))
	})
})

var _ = Describe("ActorState", func() {
	It("should clone variables", func() {
		s := ActorState{Name: "Cat", Variables: map[string]any{"score": 1}}

		c := s.Clone()
		c.Variables["score"] = 2

		Expect(s.Variables["score"]).To(Equal(1))
	})

	It("should measure bounds", func() {
		r := Rect{Left: -1, Right: 3, Top: 2, Bottom: -2}

		Expect(r.Width()).To(Equal(4.0))
		Expect(r.Height()).To(Equal(4.0))
	})
})

var _ = Describe("Rect", func() {
	It("should intersect overlapping boxes", func() {
		a := Rect{Left: -1, Right: 1, Top: 1, Bottom: -1}
		b := Rect{Left: 0, Right: 2, Top: 1, Bottom: -1}

		Expect(a.Intersects(b)).To(BeTrue())
		Expect(b.Intersects(a)).To(BeTrue())
	})

	It("should intersect touching boxes", func() {
		a := Rect{Left: -1, Right: 0, Top: 1, Bottom: -1}
		b := Rect{Left: 0, Right: 2, Top: 1, Bottom: -1}

		Expect(a.Intersects(b)).To(BeTrue())
	})

	It("should not intersect separated boxes", func() {
		a := Rect{Left: -5, Right: -3, Top: 1, Bottom: -1}
		b := Rect{Left: 0, Right: 2, Top: 1, Bottom: -1}

		Expect(a.Intersects(b)).To(BeFalse())
	})
})
