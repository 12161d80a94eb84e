package state

// Status tracks a request through its lifecycle: it enters the pending set
// as queued, moves to processing when dispatched, and ends in exactly one of
// succeeded, failed or cleared. A failed attempt with retry budget left goes
// through retrying before being dispatched again.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCleared    Status = "cleared"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCleared
}

var AllStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusRetrying,
	StatusSucceeded,
	StatusFailed,
	StatusCleared,
}

type Transition struct {
	From Status
	To   Status
}

var ValidTransitions = []Transition{
	{From: StatusQueued, To: StatusProcessing},
	{From: StatusQueued, To: StatusCleared},
	{From: StatusProcessing, To: StatusSucceeded},
	{From: StatusProcessing, To: StatusRetrying},
	{From: StatusProcessing, To: StatusFailed},
	{From: StatusRetrying, To: StatusProcessing},
}

func IsValidTransition(from, to Status) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
