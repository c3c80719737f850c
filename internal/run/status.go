package run

// Status is the computed state of a run.
type Status string

const (
	StatusNotSubmitted Status = "not submitted"
	StatusQueued       Status = "queued"
	StatusRunning      Status = "running"
	StatusFinished     Status = "finished"
	StatusTimedOut     Status = "timed out"
	StatusErrored      Status = "errored"
	StatusFailed       Status = "failed"
	StatusUnknown      Status = "unknown"
)

// Phrase completes a sentence such as "sim_1 (init) ...".
func (s Status) Phrase() string {
	switch s {
	case StatusNotSubmitted:
		return "has not started"
	case StatusQueued:
		return "is queueing"
	case StatusRunning:
		return "is running"
	case StatusFinished:
		return "has finished"
	case StatusTimedOut:
		return "has exceeded the time limit"
	case StatusErrored:
		return "has errored"
	case StatusFailed:
		return "has failed"
	default:
		return "has unknown status"
	}
}

// IsTerminal reports whether the job has left the queue for good.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusTimedOut, StatusErrored, StatusFailed:
		return true
	}
	return false
}
