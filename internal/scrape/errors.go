package scrape

import "fmt"

// StartError indicates the remote run could not be started: malformed
// input, a non-2xx response, or a transport failure.
type StartError struct {
	Actor string
	Cause error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting scrape run for %s: %v", e.Actor, e.Cause)
}

func (e *StartError) Unwrap() error { return e.Cause }

// StartTimeoutError indicates the start call exceeded its timeout budget.
// Distinct from StartError so callers can tell "rejected" from "slow".
type StartTimeoutError struct {
	Actor   string
	Timeout string
}

func (e *StartTimeoutError) Error() string {
	return fmt.Sprintf("scrape run start for %s timed out after %s", e.Actor, e.Timeout)
}

// WaitTimeoutError indicates the run never reached a terminal status
// within the overall wait budget.
type WaitTimeoutError struct {
	RunID      string
	Budget     string
	LastStatus string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("scrape run %s still %s after %s wait budget", e.RunID, e.LastStatus, e.Budget)
}

// RunFailedError indicates the run reached a terminal status other than
// SUCCEEDED.
type RunFailedError struct {
	RunID  string
	Status string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("scrape run %s finished with status %s", e.RunID, e.Status)
}
