package judge

import "github.com/sarchlab/itch/sim"

// Hook positions raised by a Context while it runs a schedule. Item is the
// *ScheduledEvent.
var (
	// HookPosNodeStart fires when a node starts its action.
	HookPosNodeStart = &sim.HookPos{Name: "NodeStart"}

	// HookPosNodeResolved fires when a node resolves. Detail is the result.
	HookPosNodeResolved = &sim.HookPos{Name: "NodeResolved"}

	// HookPosNodeTimeout fires when a synchronous node times out. Detail is
	// the *TimeoutError.
	HookPosNodeTimeout = &sim.HookPos{Name: "NodeTimeout"}

	// HookPosNodeError fires when the action of a node fails. Detail is the
	// error.
	HookPosNodeError = &sim.HookPos{Name: "NodeError"}
)
