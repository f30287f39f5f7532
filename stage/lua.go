package stage

import (
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/itch/sim"
)

func (s *Stage) registerAPI() {
	loaders := map[string]lua.LGFunction{
		"sprite":         s.luaSprite,
		"stage":          s.luaStage,
		"variables":      s.luaVariables,
		"when_flag":      s.luaWhen(sim.HatFlag, false),
		"when_clicked":   s.luaWhen(sim.HatClicked, false),
		"when_key":       s.luaWhen(sim.HatKey, true),
		"when_broadcast": s.luaWhen(sim.HatBroadcast, true),
	}

	primitives := map[string]lua.LGFunction{
		"move":               s.luaMove,
		"turn_right":         s.luaTurn("motion_turnright", 1),
		"turn_left":          s.luaTurn("motion_turnleft", -1),
		"point_in_direction": s.luaPointInDirection,
		"go_to":              s.luaGoTo,
		"change_x":           s.luaChangeXY("motion_changexby", 1, 0),
		"change_y":           s.luaChangeXY("motion_changeyby", 0, 1),
		"set_x":              s.luaSetX,
		"set_y":              s.luaSetY,
		"bounce":             s.luaBounce,
		"switch_costume":     s.luaSwitchCostume,
		"next_costume":       s.luaNextCostume,
		"show":               s.luaSetVisible("looks_show", true),
		"hide":               s.luaSetVisible("looks_hide", false),
		"set_size":           s.luaSetSize,
		"change_size":        s.luaChangeSize,
		"_say":               s.luaSay,
		"_broadcast":         s.luaBroadcast,
		"set_var":            s.luaSetVar,
		"change_var":         s.luaChangeVar,
		"pen_down":           s.luaPen("pen_penDown", true),
		"pen_up":             s.luaPen("pen_penUp", false),
		"pen_clear":          s.luaPenClear,
		"set_pen_color":      s.luaSetPenColor,
		"set_pen_size":       s.luaSetPenSize,
		"_ask":               s.luaAsk,
		"reset_timer":        s.luaResetTimer,
		"_stop_all":          s.luaStopAll,
		"_stop_this":         s.luaStopThis,
	}

	reporters := map[string]lua.LGFunction{
		"var":            s.luaVar,
		"x_position":     s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LNumber(st.X) }),
		"y_position":     s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LNumber(st.Y) }),
		"direction":      s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LNumber(st.Direction) }),
		"size":           s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LNumber(st.Size) }),
		"costume_number": s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LNumber(st.CostumeID + 1) }),
		"costume_name":   s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LString(st.CostumeName) }),
		"touching_edge":  s.luaReport(func(st sim.ActorState) lua.LValue { return lua.LBool(st.TouchingEdge) }),
		"touching":       s.luaTouching,
		"timer":          s.luaTimer,
		"key_pressed":    s.luaKeyPressed,
		"mouse_x":        s.luaMouse(func(m sim.Mouse) lua.LValue { return lua.LNumber(m.X) }),
		"mouse_y":        s.luaMouse(func(m sim.Mouse) lua.LValue { return lua.LNumber(m.Y) }),
		"mouse_down":     s.luaMouse(func(m sim.Mouse) lua.LValue { return lua.LBool(m.Down) }),
		"answer":         s.luaAnswer,
		"_waiting":       s.luaWaiting,
		"_all_done":      s.luaAllDone,
	}

	for _, group := range []map[string]lua.LGFunction{loaders, primitives, reporters} {
		for name, fn := range group {
			s.L.SetGlobal(name, s.L.NewFunction(fn))
		}
	}
}

// thread returns the thread running on L, raising a Lua error when the
// function is called outside of a script.
func (s *Stage) thread(L *lua.LState) *Thread {
	t, ok := s.byCo[L]
	if !ok {
		L.RaiseError("this function can only be used in a script")
	}

	return t
}

func (s *Stage) luaSprite(L *lua.LState) int {
	if s.L != L || s.running {
		L.RaiseError("sprites can only be declared when loading")
	}

	name := L.CheckString(1)
	if _, exists := s.actorIndex[name]; exists {
		L.RaiseError("actor %q already exists", name)
	}

	spec := ActorSpec{
		Direction: 90,
		Size:      100,
		Visible:   true,
		Width:     40,
		Height:    40,
	}

	if props, ok := L.Get(2).(*lua.LTable); ok {
		spec = parseActorSpec(props, spec)
	}

	a := newActor(s, name, false, spec)
	s.actors = append(s.actors, a)
	s.actorIndex[name] = a
	s.defining = a

	return 0
}

func parseActorSpec(props *lua.LTable, spec ActorSpec) ActorSpec {
	number := func(key string, value *float64) {
		if n, ok := props.RawGetString(key).(lua.LNumber); ok {
			*value = float64(n)
		}
	}

	number("x", &spec.X)
	number("y", &spec.Y)
	number("direction", &spec.Direction)
	number("size", &spec.Size)
	number("width", &spec.Width)
	number("height", &spec.Height)

	if v, ok := props.RawGetString("visible").(lua.LBool); ok {
		spec.Visible = bool(v)
	}

	if costumes, ok := props.RawGetString("costumes").(*lua.LTable); ok {
		costumes.ForEach(func(_, v lua.LValue) {
			spec.Costumes = append(spec.Costumes, v.String())
		})
	}

	if vars, ok := props.RawGetString("variables").(*lua.LTable); ok {
		spec.Variables = tableToMap(vars)
	}

	return spec
}

func tableToMap(t *lua.LTable) map[string]any {
	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGo(v)
	})

	return m
}

func (s *Stage) luaStage(L *lua.LState) int {
	if s.L != L || s.running {
		L.RaiseError("the stage can only be selected when loading")
	}

	s.defining = s.stageActor

	return 0
}

func (s *Stage) luaVariables(L *lua.LState) int {
	if s.L != L || s.running {
		L.RaiseError("variables can only be declared when loading")
	}

	vars := tableToMap(L.CheckTable(1))
	s.defining.update(func(st *sim.ActorState) {
		for k, v := range vars {
			st.Variables[k] = v
		}
	})

	return 0
}

func (s *Stage) luaWhen(kind sim.HatKind, hasField bool) lua.LGFunction {
	return func(L *lua.LState) int {
		if s.L != L || s.running {
			L.RaiseError("hats can only be declared when loading")
		}

		hat := sim.Hat{Kind: kind}
		fnArg := 1

		if hasField {
			hat.Field = L.CheckString(1)
			fnArg = 2
		}

		s.scripts = append(s.scripts, &script{
			actor: s.defining,
			hat:   hat,
			fn:    L.CheckFunction(fnArg),
		})

		return 0
	}
}

func (s *Stage) luaMove(L *lua.LState) int {
	t := s.thread(L)
	steps := float64(L.CheckNumber(1))

	s.execute(t, "motion_movesteps", []any{steps}, func() {
		t.script.actor.moveSteps(steps)
	})

	return 0
}

func (s *Stage) luaTurn(opcode string, sign float64) lua.LGFunction {
	return func(L *lua.LState) int {
		t := s.thread(L)
		degrees := float64(L.CheckNumber(1))

		s.execute(t, opcode, []any{degrees}, func() {
			t.script.actor.update(func(st *sim.ActorState) {
				st.Direction = normalizeDirection(st.Direction + sign*degrees)
			})
		})

		return 0
	}
}

func (s *Stage) luaPointInDirection(L *lua.LState) int {
	t := s.thread(L)
	direction := float64(L.CheckNumber(1))

	s.execute(t, "motion_pointindirection", []any{direction}, func() {
		t.script.actor.update(func(st *sim.ActorState) {
			st.Direction = normalizeDirection(direction)
		})
	})

	return 0
}

func (s *Stage) luaGoTo(L *lua.LState) int {
	t := s.thread(L)
	x := float64(L.CheckNumber(1))
	y := float64(L.CheckNumber(2))

	s.execute(t, "motion_gotoxy", []any{x, y}, func() {
		t.script.actor.moveTo(x, y)
	})

	return 0
}

func (s *Stage) luaChangeXY(opcode string, fx, fy float64) lua.LGFunction {
	return func(L *lua.LState) int {
		t := s.thread(L)
		d := float64(L.CheckNumber(1))

		s.execute(t, opcode, []any{d}, func() {
			st := t.script.actor.State()
			t.script.actor.moveTo(st.X+fx*d, st.Y+fy*d)
		})

		return 0
	}
}

func (s *Stage) luaSetX(L *lua.LState) int {
	t := s.thread(L)
	x := float64(L.CheckNumber(1))

	s.execute(t, "motion_setx", []any{x}, func() {
		t.script.actor.moveTo(x, t.script.actor.State().Y)
	})

	return 0
}

func (s *Stage) luaSetY(L *lua.LState) int {
	t := s.thread(L)
	y := float64(L.CheckNumber(1))

	s.execute(t, "motion_sety", []any{y}, func() {
		t.script.actor.moveTo(t.script.actor.State().X, y)
	})

	return 0
}

func (s *Stage) luaBounce(L *lua.LState) int {
	t := s.thread(L)

	s.execute(t, "motion_ifonedgebounce", nil, func() {
		t.script.actor.bounceOnEdge()
	})

	return 0
}

func (s *Stage) luaSwitchCostume(L *lua.LState) int {
	t := s.thread(L)
	a := t.script.actor
	arg := L.CheckAny(1)

	s.execute(t, "looks_switchcostumeto", []any{toGo(arg)}, func() {
		switch v := arg.(type) {
		case lua.LNumber:
			a.switchCostume(int(v) - 1)
		default:
			if id, ok := a.costumeIndex(v.String()); ok {
				a.switchCostume(id)
			}
		}
	})

	return 0
}

func (s *Stage) luaNextCostume(L *lua.LState) int {
	t := s.thread(L)
	a := t.script.actor

	s.execute(t, "looks_nextcostume", nil, func() {
		a.switchCostume(a.State().CostumeID + 1)
	})

	return 0
}

func (s *Stage) luaSetVisible(opcode string, visible bool) lua.LGFunction {
	return func(L *lua.LState) int {
		t := s.thread(L)

		s.execute(t, opcode, nil, func() {
			t.script.actor.update(func(st *sim.ActorState) {
				st.Visible = visible
			})
		})

		return 0
	}
}

func (s *Stage) luaSetSize(L *lua.LState) int {
	t := s.thread(L)
	size := float64(L.CheckNumber(1))

	s.execute(t, "looks_setsizeto", []any{size}, func() {
		t.script.actor.update(func(st *sim.ActorState) {
			st.Size = math.Max(size, 0)
		})
	})

	return 0
}

func (s *Stage) luaChangeSize(L *lua.LState) int {
	t := s.thread(L)
	d := float64(L.CheckNumber(1))

	s.execute(t, "looks_changesizeby", []any{d}, func() {
		t.script.actor.update(func(st *sim.ActorState) {
			st.Size = math.Max(st.Size+d, 0)
		})
	})

	return 0
}

func (s *Stage) luaSay(L *lua.LState) int {
	t := s.thread(L)
	a := t.script.actor
	text := L.OptString(1, "")

	s.execute(t, "looks_say", []any{text}, func() {
		switch {
		case text == "" && a.bubble != nil:
			s.renderer.destroySkin(*a.bubble)
			a.bubble = nil
		case text == "":
		case a.bubble == nil:
			skin := s.renderer.createSkin("bubble", text, a.name)
			a.bubble = &skin
		default:
			a.bubble.Name = text
			s.renderer.updateSkin(*a.bubble)
		}
	})

	return 0
}

func (s *Stage) luaBroadcast(L *lua.LState) int {
	t := s.thread(L)
	name := L.CheckString(1)
	ids := L.NewTable()

	s.execute(t, "event_broadcast", []any{name}, func() {
		for _, started := range s.dispatch(sim.Hat{Kind: sim.HatBroadcast, Field: name}, "") {
			ids.Append(lua.LNumber(started.id))
		}
	})

	L.Push(ids)

	return 1
}

// owner finds the actor owning a variable, preferring the sprite over the
// stage.
func (s *Stage) owner(a *Actor, name string) (*Actor, bool) {
	if _, ok := a.Variable(name); ok {
		return a, true
	}

	if _, ok := s.stageActor.Variable(name); ok {
		return s.stageActor, true
	}

	return a, false
}

func (s *Stage) luaSetVar(L *lua.LState) int {
	t := s.thread(L)
	name := L.CheckString(1)
	value := toGo(L.CheckAny(2))

	s.execute(t, "data_setvariableto", []any{name, value}, func() {
		owner, _ := s.owner(t.script.actor, name)
		owner.setVariable(name, value)
	})

	return 0
}

func (s *Stage) luaChangeVar(L *lua.LState) int {
	t := s.thread(L)
	name := L.CheckString(1)
	d := float64(L.CheckNumber(2))

	s.execute(t, "data_changevariableby", []any{name, d}, func() {
		owner, _ := s.owner(t.script.actor, name)
		current, _ := owner.Variable(name)
		owner.setVariable(name, toNumber(current)+d)
	})

	return 0
}

func (s *Stage) luaVar(L *lua.LState) int {
	t := s.thread(L)
	name := L.CheckString(1)

	owner, ok := s.owner(t.script.actor, name)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	v, _ := owner.Variable(name)
	L.Push(toLua(v))

	return 1
}

func (s *Stage) luaPen(opcode string, down bool) lua.LGFunction {
	return func(L *lua.LState) int {
		t := s.thread(L)
		a := t.script.actor

		s.execute(t, opcode, nil, func() {
			a.pen.down = down
			if !down {
				return
			}

			st := a.State()
			s.renderer.drawPoint(sim.PenPoint{
				At:    sim.Point{X: st.X, Y: st.Y},
				Color: a.pen.color,
				Size:  a.pen.size,
			})
		})

		return 0
	}
}

func (s *Stage) luaPenClear(L *lua.LState) int {
	t := s.thread(L)

	s.execute(t, "pen_clear", nil, func() {
		s.renderer.clear()
	})

	return 0
}

func (s *Stage) luaSetPenColor(L *lua.LState) int {
	t := s.thread(L)
	color := L.CheckString(1)

	s.execute(t, "pen_setPenColorTo", []any{color}, func() {
		t.script.actor.pen.color = color
	})

	return 0
}

func (s *Stage) luaSetPenSize(L *lua.LState) int {
	t := s.thread(L)
	size := float64(L.CheckNumber(1))

	s.execute(t, "pen_setPenSizeTo", []any{size}, func() {
		t.script.actor.pen.size = size
	})

	return 0
}

func (s *Stage) luaAsk(L *lua.LState) int {
	t := s.thread(L)
	text := L.OptString(1, "")

	s.execute(t, "sensing_askandwait", []any{text}, func() {
		t.question = &sim.Question{Actor: t.script.actor, Text: text}
		s.invoke(sim.HookPosQuestion, t.question)
	})

	return 0
}

func (s *Stage) luaWaiting(L *lua.LState) int {
	t := s.thread(L)

	if t.question != nil && t.question.Answered {
		s.answer = t.question.Answer
		t.question = nil
	}

	L.Push(lua.LBool(t.question != nil))

	return 1
}

func (s *Stage) luaAnswer(L *lua.LState) int {
	L.Push(lua.LString(s.answer))
	return 1
}

func (s *Stage) luaAllDone(L *lua.LState) int {
	ids := L.CheckTable(1)
	done := true

	ids.ForEach(func(_, v lua.LValue) {
		id := uint64(lua.LVAsNumber(v))
		for _, t := range s.threads {
			if t.id == id && !t.Done() {
				done = false
			}
		}
	})

	L.Push(lua.LBool(done))

	return 1
}

func (s *Stage) luaResetTimer(L *lua.LState) int {
	t := s.thread(L)

	s.execute(t, "sensing_resettimer", nil, func() {
		s.timer = 0
	})

	return 0
}

func (s *Stage) luaStopAll(L *lua.LState) int {
	t := s.thread(L)

	s.execute(t, "control_stop", []any{"all"}, func() {
		s.halt()
	})

	return 0
}

func (s *Stage) luaStopThis(L *lua.LState) int {
	t := s.thread(L)

	s.execute(t, "control_stop", []any{"this script"}, func() {
		s.finish(t)
	})

	return 0
}

func (s *Stage) luaReport(
	get func(st sim.ActorState) lua.LValue,
) lua.LGFunction {
	return func(L *lua.LState) int {
		t := s.thread(L)
		L.Push(get(t.script.actor.State()))

		return 1
	}
}

func (s *Stage) luaTouching(L *lua.LState) int {
	t := s.thread(L)
	name := L.CheckString(1)

	other, ok := s.actorIndex[name]
	if !ok || other == t.script.actor {
		L.Push(lua.LFalse)
		return 1
	}

	mine := t.script.actor.State()
	theirs := other.State()
	touching := mine.Visible && theirs.Visible &&
		mine.Bounds.Intersects(theirs.Bounds)

	L.Push(lua.LBool(touching))

	return 1
}

func (s *Stage) luaTimer(L *lua.LState) int {
	L.Push(lua.LNumber(s.timer))
	return 1
}

func (s *Stage) luaKeyPressed(L *lua.LState) int {
	key := L.CheckString(1)

	pressed := s.keys[key]
	if key == "any" {
		for _, down := range s.keys {
			pressed = pressed || down
		}
	}

	L.Push(lua.LBool(pressed))

	return 1
}

func (s *Stage) luaMouse(get func(m sim.Mouse) lua.LValue) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(get(s.mouse))
		return 1
	}
}

func toGo(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case lua.LBool:
		return bool(v)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

func toLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case float64:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	default:
		return lua.LNil
	}
}

func toNumber(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return 0
}
