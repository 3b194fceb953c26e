package model

import "time"

// RemotePayload is what the catalog receives on publish. Media is always durable.
type RemotePayload struct {
	OwnerID      string                 `json:"ownerId"`
	DraftID      string                 `json:"draftId,omitempty"` // dedup key on republish
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Tags         []string               `json:"tags"`
	PrivacyLevel string                 `json:"privacyLevel"`
	Location     string                 `json:"location"`
	Duration     float64                `json:"duration"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
	Media        DurablePayload         `json:"media"`
}

// RemoteRecord is a catalog entry as returned by the remote service.
type RemoteRecord struct {
	ID           string                 `json:"id"`
	OwnerID      string                 `json:"ownerId"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Tags         []string               `json:"tags"`
	PrivacyLevel string                 `json:"privacyLevel"`
	Location     string                 `json:"location"`
	Duration     float64                `json:"duration"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
	Media        *DurablePayload        `json:"media,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// RemotePatch is a partial catalog update; nil fields are not sent.
type RemotePatch struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	PrivacyLevel *string   `json:"privacyLevel,omitempty"`
	Location     *string   `json:"location,omitempty"`
}

// NewRemotePayload flattens a draft payload with its materialized media.
func NewRemotePayload(ownerID, draftID string, p Payload, media DurablePayload) RemotePayload {
	return RemotePayload{
		OwnerID:      ownerID,
		DraftID:      draftID,
		Title:        p.Title,
		Description:  p.Description,
		Category:     p.Category,
		Tags:         p.Tags,
		PrivacyLevel: p.PrivacyLevel,
		Location:     p.Location,
		Duration:     p.Duration,
		Extra:        p.Extra,
		Media:        media,
	}
}
