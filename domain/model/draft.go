package model

import (
	"strings"
	"time"
)

// DraftIDPrefix marks identifiers issued by the local draft store. Remote catalog
// identifiers never carry it.
const DraftIDPrefix = "draft_"

type DraftStatus string

const (
	DraftStatusDraft   DraftStatus = "draft"
	DraftStatusPending DraftStatus = "pending"
	DraftStatusFailed  DraftStatus = "failed"
)

func (s DraftStatus) Valid() bool {
	switch s {
	case DraftStatusDraft, DraftStatusPending, DraftStatusFailed:
		return true
	}
	return false
}

// IsDraftID reports whether id belongs to the local draft id space.
func IsDraftID(id string) bool {
	return strings.HasPrefix(id, DraftIDPrefix)
}

// Payload is the submission content handed over by the editing surface.
type Payload struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Tags         []string               `json:"tags"`
	PrivacyLevel string                 `json:"privacy_level"`
	Location     string                 `json:"location"`
	Duration     float64                `json:"duration"`
	Extra        map[string]interface{} `json:"extra,omitempty"` // editing metadata, passed through untouched
	Media        MediaReference         `json:"media"`
}

// Draft is a locally persisted submission not yet accepted by the remote catalog.
type Draft struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"owner_id"`
	Payload      Payload     `json:"payload"`
	Status       DraftStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Attempts     int         `json:"attempts"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Clone returns a deep enough copy for callers that must not share slices or maps
// with the store.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	if d.Payload.Tags != nil {
		c.Payload.Tags = append([]string(nil), d.Payload.Tags...)
	}
	if d.Payload.Extra != nil {
		c.Payload.Extra = make(map[string]interface{}, len(d.Payload.Extra))
		for k, v := range d.Payload.Extra {
			c.Payload.Extra[k] = v
		}
	}
	c.Payload.Media = d.Payload.Media.Clone()
	return &c
}

// PayloadPatch is a partial payload edit. Nil fields keep their stored value.
type PayloadPatch struct {
	Title        *string                `json:"title,omitempty"`
	Description  *string                `json:"description,omitempty"`
	Category     *string                `json:"category,omitempty"`
	Tags         *[]string              `json:"tags,omitempty"`
	PrivacyLevel *string                `json:"privacy_level,omitempty"`
	Location     *string                `json:"location,omitempty"`
	Duration     *float64               `json:"duration,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
	Media        *MediaReference        `json:"media,omitempty"`
}

// Apply merges the patch into base and returns the result. base is not modified.
func (p PayloadPatch) Apply(base Payload) Payload {
	out := base
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.PrivacyLevel != nil {
		out.PrivacyLevel = *p.PrivacyLevel
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Duration != nil {
		out.Duration = *p.Duration
	}
	if p.Extra != nil {
		out.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	if p.Media != nil {
		out.Media = p.Media.Clone()
	}
	return out
}

// DraftPatch carries a partial update. Nil fields are left untouched.
type DraftPatch struct {
	Payload      *PayloadPatch
	Status       *DraftStatus
	ErrorMessage *string
	Attempts     *int
}

// DraftStats aggregates the live draft set by status.
type DraftStats struct {
	Total   int `json:"total"`
	Draft   int `json:"draft"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// ConnectivitySnapshot is the in-memory view of remote reachability.
type ConnectivitySnapshot struct {
	Reachable       bool       `json:"reachable"`
	LastReachableAt *time.Time `json:"last_reachable_at"`
	Probing         bool       `json:"probing"`
}
