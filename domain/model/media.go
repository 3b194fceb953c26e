package model

import (
	"encoding/json"
	"fmt"
)

type MediaKind string

const (
	MediaKindDurable   MediaKind = "durable"
	MediaKindEphemeral MediaKind = "ephemeral"
	MediaKindRawBuffer MediaKind = "raw_buffer"
	MediaKindFile      MediaKind = "file"
)

// DurablePayload is a self-contained media encoding that survives restarts.
// Data is a data URI ("data:<mime>;base64,<bytes>").
type DurablePayload struct {
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Data     string `json:"data"`
}

// MediaSource is one of DurableSource, EphemeralHandle, RawBuffer or FileHandle.
type MediaSource interface {
	Kind() MediaKind
	mediaSource()
}

type DurableSource struct {
	Payload DurablePayload
}

// EphemeralHandle points at media only valid for the lifetime of the originating process.
type EphemeralHandle struct {
	URL string
}

// RawBuffer is the captured bytes supplied alongside the submission.
type RawBuffer struct {
	Data     []byte
	MimeType string
}

// FileHandle references an uploaded file on local disk.
type FileHandle struct {
	Path     string
	MimeType string
}

func (DurableSource) Kind() MediaKind   { return MediaKindDurable }
func (EphemeralHandle) Kind() MediaKind { return MediaKindEphemeral }
func (RawBuffer) Kind() MediaKind       { return MediaKindRawBuffer }
func (FileHandle) Kind() MediaKind      { return MediaKindFile }

func (DurableSource) mediaSource()   {}
func (EphemeralHandle) mediaSource() {}
func (RawBuffer) mediaSource()       {}
func (FileHandle) mediaSource()      {}

// MediaReference holds every source known for a submission's media.
type MediaReference struct {
	Sources []MediaSource
}

func NewDurableReference(p DurablePayload) MediaReference {
	return MediaReference{Sources: []MediaSource{DurableSource{Payload: p}}}
}

// Durable returns the durable payload if the reference already holds one.
func (r MediaReference) Durable() (DurablePayload, bool) {
	for _, s := range r.Sources {
		if d, ok := s.(DurableSource); ok {
			return d.Payload, true
		}
	}
	return DurablePayload{}, false
}

func (r MediaReference) IsEmpty() bool { return len(r.Sources) == 0 }

func (r MediaReference) Clone() MediaReference {
	if r.Sources == nil {
		return MediaReference{}
	}
	out := make([]MediaSource, 0, len(r.Sources))
	for _, s := range r.Sources {
		if rb, ok := s.(RawBuffer); ok {
			rb.Data = append([]byte(nil), rb.Data...)
			s = rb
		}
		out = append(out, s)
	}
	return MediaReference{Sources: out}
}

type mediaSourceJSON struct {
	Kind     MediaKind       `json:"kind"`
	Durable  *DurablePayload `json:"durable,omitempty"`
	URL      string          `json:"url,omitempty"`
	Data     []byte          `json:"data,omitempty"`
	Path     string          `json:"path,omitempty"`
	MimeType string          `json:"mime_type,omitempty"`
}

func (r MediaReference) MarshalJSON() ([]byte, error) {
	items := make([]mediaSourceJSON, 0, len(r.Sources))
	for _, s := range r.Sources {
		switch v := s.(type) {
		case DurableSource:
			p := v.Payload
			items = append(items, mediaSourceJSON{Kind: MediaKindDurable, Durable: &p})
		case EphemeralHandle:
			items = append(items, mediaSourceJSON{Kind: MediaKindEphemeral, URL: v.URL})
		case RawBuffer:
			items = append(items, mediaSourceJSON{Kind: MediaKindRawBuffer, Data: v.Data, MimeType: v.MimeType})
		case FileHandle:
			items = append(items, mediaSourceJSON{Kind: MediaKindFile, Path: v.Path, MimeType: v.MimeType})
		default:
			return nil, fmt.Errorf("unknown media source %T", s)
		}
	}
	return json.Marshal(items)
}

func (r *MediaReference) UnmarshalJSON(b []byte) error {
	var items []mediaSourceJSON
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	sources := make([]MediaSource, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case MediaKindDurable:
			if it.Durable == nil {
				return fmt.Errorf("durable media source without payload")
			}
			sources = append(sources, DurableSource{Payload: *it.Durable})
		case MediaKindEphemeral:
			sources = append(sources, EphemeralHandle{URL: it.URL})
		case MediaKindRawBuffer:
			sources = append(sources, RawBuffer{Data: it.Data, MimeType: it.MimeType})
		case MediaKindFile:
			sources = append(sources, FileHandle{Path: it.Path, MimeType: it.MimeType})
		default:
			return fmt.Errorf("unknown media source kind %q", it.Kind)
		}
	}
	r.Sources = sources
	return nil
}
