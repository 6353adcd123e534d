package domain

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

type RefreshState string

const (
	StateIdle        RefreshState = "idle"
	StateDiscovering RefreshState = "discovering"
	StateFetching    RefreshState = "fetching"
	StateReconciling RefreshState = "reconciling"
	StateDone        RefreshState = "done"
)

// RefreshReport holds statistics about a refresh run.
type RefreshReport struct {
	RunID        string
	Outcome      Outcome
	Discovered   int
	Succeeded    int
	Failed       int
	Written      int
	SkippedEmpty int
	Errors       []error
	Duration     time.Duration
}

type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

type Notification struct {
	Kind    NotificationKind
	Message string
	RunID   string
}
