package report

// Command names of the report stream.
const (
	CmdStartJudgement = "start-judgement"
	CmdCloseJudgement = "close-judgement"
	CmdStartTab       = "start-tab"
	CmdCloseTab       = "close-tab"
	CmdStartContext   = "start-context"
	CmdCloseContext   = "close-context"
	CmdStartTestcase  = "start-testcase"
	CmdCloseTestcase  = "close-testcase"
	CmdStartTest      = "start-test"
	CmdCloseTest      = "close-test"
	CmdAppendMessage  = "append-message"
	CmdEscalateStatus = "escalate-status"
)

// A Command is one entry of the report stream.
type Command struct {
	Command     string `json:"command"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Generated   string `json:"generated,omitempty"`
	Message     string `json:"message,omitempty"`
	Status      Status `json:"status,omitempty"`
	Accepted    *bool  `json:"accepted,omitempty"`
}

// An Emitter writes commands somewhere.
type Emitter interface {
	Emit(cmd Command) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(cmd Command) error

// Emit calls f.
func (f EmitterFunc) Emit(cmd Command) error {
	return f(cmd)
}

// Tee emits every command to all emitters. It returns the first error.
func Tee(emitters ...Emitter) Emitter {
	return EmitterFunc(func(cmd Command) error {
		var firstErr error

		for _, e := range emitters {
			if err := e.Emit(cmd); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		return firstErr
	})
}
