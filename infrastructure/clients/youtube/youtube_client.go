package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/media"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var videoParts = []string{"snippet", "contentDetails", "status"}

// HealthURL is polled by the connectivity probe in youtube mode. It answers with
// the public API discovery document and needs no credentials.
const HealthURL = "https://www.googleapis.com/discovery/v1/apis/youtube/v3/rest"

// Client publishes to a YouTube channel. The channel plays the role of the catalog
// owner, so ListByOwner returns the channel's uploads.
type Client struct {
	service   *youtube.Service
	channelID string
	readOnly  bool
	timeout   time.Duration
}

// Config represents YouTube API configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AccessToken  string
	RefreshToken string
	ChannelID    string
	APIKey       string
	Timeout      time.Duration
	// Endpoint overrides the API base URL; tests point it at httptest.
	Endpoint string
	// HTTPClient is used as-is when set, skipping OAuth setup.
	HTTPClient *http.Client
}

var _ repository.ICatalog = (*Client)(nil)

// NewYouTubeClient creates a new YouTube API client
func NewYouTubeClient(ctx context.Context, config *Config) (*Client, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var opts []option.ClientOption
	readOnly := false
	switch {
	case config.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	case (config.AccessToken == "" && config.RefreshToken == "") && config.APIKey != "":
		// API key mode can list and read but every write is refused by YouTube
		opts = append(opts, option.WithAPIKey(config.APIKey))
		readOnly = true
		logger.GetLogger().Warn("YouTube client in API key mode; publishing will be rejected")
	default:
		oauth2Config := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes: []string{
				youtube.YoutubeScope,
				youtube.YoutubeUploadScope,
				youtube.YoutubeForceSslScope,
			},
			Endpoint: google.Endpoint,
		}
		token := &oauth2.Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-1 * time.Minute), // Force refresh on first use
		}
		// Client wraps a ReuseTokenSource, so expired tokens are refreshed on demand.
		opts = append(opts, option.WithHTTPClient(oauth2Config.Client(ctx, token)))
	}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &Client{service: service, channelID: config.ChannelID, readOnly: readOnly, timeout: timeout}, nil
}

func (c *Client) Publish(ctx context.Context, payload model.RemotePayload) (string, error) {
	if c.readOnly {
		return "", &model.GatewayError{Kind: model.GatewayRejected, Op: "publish", Message: "YouTube client has no OAuth credentials"}
	}
	raw, err := media.Decode(payload.Media)
	if err != nil {
		return "", &model.GatewayError{Kind: model.GatewayRejected, Op: "publish", Message: "media is not a durable payload", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       payload.Title,
			Description: payload.Description,
			Tags:        payload.Tags,
			CategoryId:  payload.Category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacyStatus(payload.PrivacyLevel),
		},
	}
	if payload.Location != "" {
		video.RecordingDetails = &youtube.VideoRecordingDetails{LocationDescription: payload.Location}
	}

	parts := []string{"snippet", "status"}
	if video.RecordingDetails != nil {
		parts = append(parts, "recordingDetails")
	}
	resp, err := c.service.Videos.Insert(parts, video).
		Media(bytes.NewReader(raw), googleapi.ContentType(payload.Media.MimeType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("publish", err)
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"videoId": resp.Id,
		"draftId": payload.DraftID,
	}).Info("Video uploaded to YouTube")
	return resp.Id, nil
}

func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]model.RemoteRecord, error) {
	if c.channelID == "" {
		return []model.RemoteRecord{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	search, err := c.service.Search.List([]string{"id"}).
		ChannelId(c.channelID).
		Type("video").
		Order("date").
		MaxResults(50).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list", err)
	}
	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return []model.RemoteRecord{}, nil
	}
	details, err := c.service.Videos.List(videoParts).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, classify("list", err)
	}
	out := make([]model.RemoteRecord, 0, len(details.Items))
	for _, v := range details.Items {
		out = append(out, toRecord(v, ownerID))
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.RemoteRecord, error) {
	v, err := c.fetch(ctx, "get", id)
	if err != nil || v == nil {
		return nil, err
	}
	rec := toRecord(v, "")
	return &rec, nil
}

func (c *Client) fetch(ctx context.Context, op, id string) (*youtube.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.service.Videos.List(videoParts).Id(id).Context(ctx).Do()
	if err != nil {
		gwErr := classify(op, err)
		if errors.Is(gwErr, model.ErrNotFound) {
			return nil, nil
		}
		return nil, gwErr
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return resp.Items[0], nil
}

func (c *Client) Update(ctx context.Context, id string, patch model.RemotePatch) (bool, error) {
	existing, err := c.fetch(ctx, "update", id)
	if err != nil || existing == nil {
		return false, err
	}
	if existing.Snippet == nil {
		existing.Snippet = &youtube.VideoSnippet{}
	}
	if existing.Status == nil {
		existing.Status = &youtube.VideoStatus{}
	}
	if patch.Title != nil {
		existing.Snippet.Title = *patch.Title
	}
	if patch.Description != nil {
		existing.Snippet.Description = *patch.Description
	}
	if patch.Category != nil {
		existing.Snippet.CategoryId = *patch.Category
	}
	if patch.Tags != nil {
		existing.Snippet.Tags = *patch.Tags
	}
	if patch.PrivacyLevel != nil {
		existing.Status.PrivacyStatus = privacyStatus(*patch.PrivacyLevel)
	}
	existing.ContentDetails = nil

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.service.Videos.Update([]string{"snippet", "status"}, existing).Context(ctx).Do(); err != nil {
		gwErr := classify("update", err)
		if errors.Is(gwErr, model.ErrNotFound) {
			return false, nil
		}
		return false, gwErr
	}
	return true, nil
}

func (c *Client) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.service.Videos.Delete(id).Context(ctx).Do(); err != nil {
		gwErr := classify("delete", err)
		if errors.Is(gwErr, model.ErrNotFound) {
			return false, nil
		}
		return false, gwErr
	}
	return true, nil
}

// ResetAll deletes every upload of the channel one by one. The confirmation token
// is checked by the caller; YouTube has no bulk delete to forward it to.
func (c *Client) ResetAll(ctx context.Context, ownerID, confirmationToken string) (int, error) {
	records, err := c.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, r := range records {
		ok, err := c.Delete(ctx, r.ID, ownerID)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// classify maps googleapi errors onto the gateway taxonomy.
func classify(op string, err error) *model.GatewayError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := model.GatewayUnreachable
		switch {
		case apiErr.Code == http.StatusNotFound:
			kind = model.GatewayNotFound
		case apiErr.Code == http.StatusRequestTimeout, apiErr.Code == http.StatusTooManyRequests:
			// transient, stays unreachable
		case apiErr.Code >= 400 && apiErr.Code < 500:
			kind = model.GatewayRejected
		}
		return &model.GatewayError{Kind: kind, Op: op, StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return model.Unreachable(op, err)
}

func privacyStatus(level string) string {
	switch level {
	case "public", "private", "unlisted":
		return level
	case "friends", "followers":
		return "unlisted"
	}
	return "private"
}

func toRecord(v *youtube.Video, ownerID string) model.RemoteRecord {
	rec := model.RemoteRecord{ID: v.Id, OwnerID: ownerID}
	if s := v.Snippet; s != nil {
		rec.Title = s.Title
		rec.Description = s.Description
		rec.Category = s.CategoryId
		rec.Tags = s.Tags
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			rec.CreatedAt = t
			rec.UpdatedAt = t
		}
		if rec.OwnerID == "" {
			rec.OwnerID = s.ChannelId
		}
	}
	if v.Status != nil {
		rec.PrivacyLevel = v.Status.PrivacyStatus
	}
	if v.ContentDetails != nil {
		rec.Duration = parseISODuration(v.ContentDetails.Duration)
	}
	if v.RecordingDetails != nil {
		rec.Location = v.RecordingDetails.LocationDescription
	}
	return rec
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// parseISODuration converts YouTube's "PT1M30S" style durations into seconds.
func parseISODuration(s string) float64 {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var total float64
	units := []float64{86400, 3600, 60, 1}
	for i, u := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		total += n * u
	}
	return total
}
