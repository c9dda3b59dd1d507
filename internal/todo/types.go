// Package todo aggregates discrete issues found by review checks into a
// persistent ledger with priorities and a status workflow.
package todo

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Type classifies an issue.
type Type string

const (
	TypeParameter   Type = "parameter"
	TypeMath        Type = "math"
	TypeClaim       Type = "claim"
	TypeReference   Type = "reference"
	TypeConsistency Type = "consistency"
)

// Priority orders issues for triage.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists priorities from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Confidence is how sure the producing check is about an issue.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Status is the triage state of a todo.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusFixed      Status = "fixed"
	StatusReviewed   Status = "reviewed"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusFixed, StatusReviewed, StatusRejected}

// RawIssue is what an issue-producing check reports for one file.
type RawIssue struct {
	Type         Type       `json:"type"`
	Line         int        `json:"line"`
	Issue        string     `json:"issue"`
	SuggestedFix string     `json:"suggestedFix,omitempty"`
	Confidence   Confidence `json:"confidence"`
}

// Validate checks the issue against the closed vocabularies.
func (r RawIssue) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required,
			validation.In(TypeParameter, TypeMath, TypeClaim, TypeReference, TypeConsistency)),
		validation.Field(&r.Issue, validation.Required),
		validation.Field(&r.Line, validation.Min(0)),
		validation.Field(&r.Confidence, validation.Required,
			validation.In(ConfidenceHigh, ConfidenceMedium, ConfidenceLow)),
	)
}

// Todo is one tracked issue.
type Todo struct {
	ID           string     `json:"id" yaml:"id"`
	Type         Type       `json:"type" yaml:"type"`
	Priority     Priority   `json:"priority" yaml:"priority"`
	FilePath     string     `json:"filePath" yaml:"filePath"`
	Line         int        `json:"line" yaml:"line"`
	Issue        string     `json:"issue" yaml:"issue"`
	SuggestedFix string     `json:"suggestedFix,omitempty" yaml:"suggestedFix,omitempty"`
	Confidence   Confidence `json:"confidence" yaml:"confidence"`
	Status       Status     `json:"status" yaml:"status"`
	AgentID      string     `json:"agentId,omitempty" yaml:"agentId,omitempty"`
	Fingerprint  string     `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// DerivePriority maps (type, confidence) to a priority.
func DerivePriority(t Type, c Confidence) Priority {
	switch {
	case t == TypeMath && c == ConfidenceHigh:
		return PriorityCritical
	case (t == TypeParameter || t == TypeReference) && c == ConfidenceHigh:
		return PriorityHigh
	case (t == TypeMath || t == TypeParameter) && c == ConfidenceMedium:
		return PriorityHigh
	case t == TypeClaim || t == TypeConsistency:
		if c == ConfidenceHigh {
			return PriorityHigh
		}
		return PriorityMedium
	default:
		return PriorityMedium
	}
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// transitions lists the forward moves allowed by SetStatus. Any status may
// also move to reviewed; going back to pending needs Reopen.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFixed, StatusRejected},
	StatusInProgress: {StatusFixed, StatusRejected},
}

// CanTransition reports whether SetStatus accepts from -> to.
func CanTransition(from, to Status) bool {
	if from == to || to == StatusReviewed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
