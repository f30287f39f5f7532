package stage

import (
	"sync"

	"github.com/sarchlab/itch/sim"
)

// Renderer is the pen and skin layer of a stage. It draws nothing; it only
// reports what would be drawn through its hooks.
type Renderer struct {
	*sim.HookableBase

	mu         sync.Mutex
	nextSkinID uint64
	skins      map[uint64]sim.Skin
}

func newRenderer() *Renderer {
	return &Renderer{
		HookableBase: sim.NewHookableBase(),
		skins:        make(map[uint64]sim.Skin),
	}
}

// Skins returns the skins that currently exist.
func (r *Renderer) Skins() []sim.Skin {
	r.mu.Lock()
	defer r.mu.Unlock()

	skins := make([]sim.Skin, 0, len(r.skins))
	for _, s := range r.skins {
		skins = append(skins, s)
	}

	return skins
}

func (r *Renderer) invoke(pos *sim.HookPos, item any) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   item,
	})
}

func (r *Renderer) drawLine(l sim.PenLine) {
	r.invoke(sim.HookPosPenLine, l)
}

func (r *Renderer) drawPoint(p sim.PenPoint) {
	r.invoke(sim.HookPosPenPoint, p)
}

func (r *Renderer) clear() {
	r.invoke(sim.HookPosPenClear, nil)
}

func (r *Renderer) createSkin(kind, name, owner string) sim.Skin {
	r.mu.Lock()
	r.nextSkinID++
	skin := sim.Skin{ID: r.nextSkinID, Kind: kind, Name: name, Owner: owner}
	r.skins[skin.ID] = skin
	r.mu.Unlock()

	r.invoke(sim.HookPosSkinCreate, skin)

	return skin
}

func (r *Renderer) updateSkin(skin sim.Skin) {
	r.mu.Lock()
	r.skins[skin.ID] = skin
	r.mu.Unlock()

	r.invoke(sim.HookPosSkinUpdate, skin)
}

func (r *Renderer) destroySkin(skin sim.Skin) {
	r.mu.Lock()
	delete(r.skins, skin.ID)
	r.mu.Unlock()

	r.invoke(sim.HookPosSkinDestroy, skin)
}

var _ sim.Renderer = (*Renderer)(nil)
