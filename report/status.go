package report

// Status classifies the outcome of a judgement.
type Status string

// The statuses a judgement can end with, from the best to the worst.
const (
	StatusCorrect           Status = "correct"
	StatusWrong             Status = "wrong"
	StatusTimeLimitExceeded Status = "time limit exceeded"
	StatusRuntimeError      Status = "runtime error"
	StatusInternalError     Status = "internal error"
)

var severity = map[Status]int{
	StatusCorrect:           0,
	StatusWrong:             1,
	StatusTimeLimitExceeded: 2,
	StatusRuntimeError:      3,
	StatusInternalError:     4,
}

// Worse tells whether s is a worse outcome than other.
func (s Status) Worse(other Status) bool {
	return severity[s] > severity[other]
}

// Human returns a readable description of the status.
func (s Status) Human() string {
	switch s {
	case StatusCorrect:
		return "Correct"
	case StatusWrong:
		return "Wrong"
	case StatusTimeLimitExceeded:
		return "Time limit exceeded"
	case StatusRuntimeError:
		return "Runtime error"
	case StatusInternalError:
		return "Internal error"
	default:
		return string(s)
	}
}
