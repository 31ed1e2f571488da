package models

import "fmt"

// ContentKind distinguishes the two content page variants the platform serves.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	// ContentAny matches either kind during resolution.
	ContentAny ContentKind = "any"
)

// ResolvedLocation is a canonical, verified content location.
type ResolvedLocation struct {
	URL  string      `json:"url"`
	Kind ContentKind `json:"kind"`
}

// OutcomeStatus classifies the result of one executed action.
type OutcomeStatus string

const (
	StatusPosted              OutcomeStatus = "Posted"
	StatusPendingVerification OutcomeStatus = "Pending Verification"
	StatusDenied              OutcomeStatus = "Denied"
	StatusNotFollowing        OutcomeStatus = "Not Following"
	StatusCommentsClosed      OutcomeStatus = "Comments Closed"
	StatusNoForm              OutcomeStatus = "No Form"
	StatusFormError           OutcomeStatus = "Form Error"
	StatusFileNotFound        OutcomeStatus = "File Not Found"
	StatusDownloadFailed      OutcomeStatus = "Image Download Failed"
	StatusFailed              OutcomeStatus = "Failed"
)

// Outcome is the immutable result of a single executed action.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	URL    string        `json:"url,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Succeeded reports whether the outcome counts as a (possibly qualified)
// success for row-status purposes. Pending verification is a qualified
// success: the action likely landed but could not be fully confirmed.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusPosted || o.Status == StatusPendingVerification
}

// Retryable reports whether the outcome is eligible for an in-run retry of
// the same action. Only platform denials are retried within a run.
func (o Outcome) Retryable() bool {
	return o.Status == StatusDenied
}

// FastFail reports whether the outcome should skip the inter-task cooldown.
// These outcomes never touched the remote surface, so there is no request
// rate to bound.
func (o Outcome) FastFail() bool {
	return o.Status == StatusFileNotFound
}

// Detail returns the status with the reason attached when one is present.
func (o Outcome) Detail() string {
	if o.Reason == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Reason)
}

// Failed builds a Failed outcome with a reason.
func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}
