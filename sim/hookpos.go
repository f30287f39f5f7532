package sim

// Hook positions raised by a Simulation.
var (
	// HookPosRunStart fires when the simulation starts running.
	HookPosRunStart = &HookPos{Name: "RunStart"}

	// HookPosRunStop fires when the simulation stops all execution.
	HookPosRunStop = &HookPos{Name: "RunStop"}

	// HookPosStep fires after every simulation step. Item is the step count.
	HookPosStep = &HookPos{Name: "Step"}

	// HookPosThreadStart fires when a thread is started. Item is the Thread.
	HookPosThreadStart = &HookPos{Name: "ThreadStart"}

	// HookPosThreadDone fires when a thread finishes or is stopped. Item is the
	// Thread, whose Done method already reports true.
	HookPosThreadDone = &HookPos{Name: "ThreadDone"}

	// HookPosBroadcast fires when a broadcast is sent, both by scripts and by
	// external dispatch. Item is the broadcast name.
	HookPosBroadcast = &HookPos{Name: "Broadcast"}

	// HookPosBeforePrimitive fires before a primitive operation executes. Item
	// is the *PrimitiveCall.
	HookPosBeforePrimitive = &HookPos{Name: "BeforePrimitive"}

	// HookPosAfterPrimitive fires after a primitive operation executes. Item
	// is the *PrimitiveCall.
	HookPosAfterPrimitive = &HookPos{Name: "AfterPrimitive"}

	// HookPosQuestion fires when a script asks a question. Item is the
	// *Question.
	HookPosQuestion = &HookPos{Name: "Question"}

	// HookPosAnswerRequested fires on every step while a question waits for
	// an answer. Item is the *Question; hooks may answer it.
	HookPosAnswerRequested = &HookPos{Name: "AnswerRequested"}
)

// Hook positions raised by a Renderer.
var (
	// HookPosPenLine fires when a line is drawn. Item is the PenLine.
	HookPosPenLine = &HookPos{Name: "PenLine"}

	// HookPosPenPoint fires when a point is drawn. Item is the PenPoint.
	HookPosPenPoint = &HookPos{Name: "PenPoint"}

	// HookPosPenClear fires when the pen layer is cleared.
	HookPosPenClear = &HookPos{Name: "PenClear"}

	// HookPosSkinCreate fires when a skin is created. Item is the Skin.
	HookPosSkinCreate = &HookPos{Name: "SkinCreate"}

	// HookPosSkinUpdate fires when a skin changes. Item is the Skin.
	HookPosSkinUpdate = &HookPos{Name: "SkinUpdate"}

	// HookPosSkinDestroy fires when a skin is destroyed. Item is the Skin.
	HookPosSkinDestroy = &HookPos{Name: "SkinDestroy"}
)
