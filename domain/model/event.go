package model

import "time"

// DrainFailure records why one draft stayed failed during a drain cycle.
type DrainFailure struct {
	DraftID string `json:"draft_id"`
	Error   string `json:"error"`
}

// DrainResult aggregates one republish cycle. Skipped is set when the trigger
// found a cycle already running.
type DrainResult struct {
	Attempted int            `json:"attempted"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   bool           `json:"skipped"`
	Failures  []DrainFailure `json:"failures,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

type PipelineEventType string

const (
	EventConnectivityRestored PipelineEventType = "connectivity_restored"
	EventConnectivityLost     PipelineEventType = "connectivity_lost"
	EventDraftSaved           PipelineEventType = "draft_saved"
	EventDrainCompleted       PipelineEventType = "drain_completed"
	EventDraftPublished       PipelineEventType = "draft_published"
)

// PipelineEvent is broadcast to display-only collaborators.
type PipelineEvent struct {
	Type       PipelineEventType `json:"type"`
	OwnerID    string            `json:"owner_id,omitempty"`
	DraftID    string            `json:"draft_id,omitempty"`
	RemoteID   string            `json:"remote_id,omitempty"`
	Result     *DrainResult      `json:"result,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
