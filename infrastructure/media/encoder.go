package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/infrastructure/logger"

	"github.com/gabriel-vasile/mimetype"
)

// ReasonNoSource is the encoding failure reported when every source is exhausted.
const ReasonNoSource = "source expired, no fallback available"

type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessLive
	LivenessExpired
)

func (l Liveness) String() string {
	switch l {
	case LivenessLive:
		return "live"
	case LivenessExpired:
		return "expired"
	}
	return "unknown"
}

var errTooLarge = errors.New("media exceeds size limit")

// Encoder turns a MediaReference into a self-contained DurablePayload. It holds no
// state between calls.
type Encoder struct {
	client       *http.Client
	probeTimeout time.Duration
	fetchTimeout time.Duration
	maxBytes     int64
}

func NewEncoder(client *http.Client, probeTimeout, fetchTimeout time.Duration, maxBytes int64) *Encoder {
	if client == nil {
		client = http.DefaultClient
	}
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	return &Encoder{client: client, probeTimeout: probeTimeout, fetchTimeout: fetchTimeout, maxBytes: maxBytes}
}

// IsDurable reports whether ref already carries a durable payload.
func IsDurable(ref model.MediaReference) bool {
	_, ok := ref.Durable()
	return ok
}

// Materialize tries durable, ephemeral, raw buffer and file sources in that order,
// whatever order they appear in ref.
func (e *Encoder) Materialize(ctx context.Context, ref model.MediaReference) (model.DurablePayload, error) {
	if d, ok := ref.Durable(); ok {
		return d, nil
	}

	var lastErr error
	for _, src := range ref.Sources {
		h, ok := src.(model.EphemeralHandle)
		if !ok {
			continue
		}
		state := e.CheckLiveness(ctx, h.URL)
		if state != LivenessLive {
			logger.GetLogger().WithFields(map[string]interface{}{
				"url":      h.URL,
				"liveness": state.String(),
			}).Info("Ephemeral media not live, trying fallback")
			continue
		}
		p, err := e.fetch(ctx, h.URL)
		if err == nil {
			return p, nil
		}
		lastErr = err
		logger.GetLogger().WithField("error", err).Warn("Ephemeral media fetch failed")
	}

	for _, src := range ref.Sources {
		if rb, ok := src.(model.RawBuffer); ok && len(rb.Data) > 0 {
			if int64(len(rb.Data)) > e.maxBytes {
				lastErr = errTooLarge
				continue
			}
			return encode(rb.Data, rb.MimeType), nil
		}
	}

	for _, src := range ref.Sources {
		fh, ok := src.(model.FileHandle)
		if !ok || fh.Path == "" {
			continue
		}
		p, err := e.readFile(fh)
		if err == nil {
			return p, nil
		}
		lastErr = err
		logger.GetLogger().WithField("error", err).Warn("Uploaded media file unreadable")
	}

	return model.DurablePayload{}, &model.EncodingError{Reason: ReasonNoSource, Err: lastErr}
}

// CheckLiveness issues a bounded HEAD. A timeout yields LivenessUnknown.
func (e *Encoder) CheckLiveness(ctx context.Context, url string) Liveness {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return LivenessExpired
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return LivenessUnknown
		}
		return LivenessExpired
	}
	resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return LivenessLive
	}
	return LivenessExpired
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func (e *Encoder) fetch(ctx context.Context, url string) (model.DurablePayload, error) {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.DurablePayload{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return model.DurablePayload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.DurablePayload{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return model.DurablePayload{}, err
	}
	if int64(len(data)) > e.maxBytes {
		return model.DurablePayload{}, errTooLarge
	}
	return encode(data, headerMimeType(resp.Header.Get("Content-Type"))), nil
}

func (e *Encoder) readFile(fh model.FileHandle) (model.DurablePayload, error) {
	info, err := os.Stat(fh.Path)
	if err != nil {
		return model.DurablePayload{}, err
	}
	if info.Size() > e.maxBytes {
		return model.DurablePayload{}, errTooLarge
	}
	data, err := os.ReadFile(fh.Path)
	if err != nil {
		return model.DurablePayload{}, err
	}
	return encode(data, fh.MimeType), nil
}

func headerMimeType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || mt == "application/octet-stream" {
		return ""
	}
	return mt
}

func encode(data []byte, mimeType string) model.DurablePayload {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return model.DurablePayload{
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// Decode reverses a durable payload back into raw bytes.
func Decode(p model.DurablePayload) ([]byte, error) {
	if !strings.HasPrefix(p.Data, "data:") {
		return nil, fmt.Errorf("not a data uri")
	}
	i := strings.Index(p.Data, ";base64,")
	if i < 0 {
		return nil, fmt.Errorf("data uri is not base64")
	}
	return base64.StdEncoding.DecodeString(p.Data[i+len(";base64,"):])
}
