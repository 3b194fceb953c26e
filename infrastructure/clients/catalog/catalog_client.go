package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const maxResponseBytes = 8 << 20

type ownerQuery struct {
	OwnerID string `url:"ownerId,omitempty"`
}

type publishResponse struct {
	ID string `json:"id"`
}

type listResponse struct {
	Items []model.RemoteRecord `json:"items"`
}

type resetRequest struct {
	OwnerID           string `json:"ownerId"`
	ConfirmationToken string `json:"confirmationToken"`
}

type resetResponse struct {
	DeletedCount *int `json:"deletedCount"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks JSON over HTTP to the remote catalog. Every failure is a *model.GatewayError.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

var _ repository.ICatalog = (*Client)(nil)

func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, timeout: timeout}
}

// HealthURL is the liveness endpoint the connectivity probe polls.
func (c *Client) HealthURL(path string) string {
	if path == "" {
		path = "/health"
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) Publish(ctx context.Context, payload model.RemotePayload) (string, error) {
	var out publishResponse
	if _, err := c.do(ctx, "publish", http.MethodPost, "/videos", nil, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &model.GatewayError{Kind: model.GatewayUnreachable, Op: "publish", Message: "response carried no id"}
	}
	return out.ID, nil
}

func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]model.RemoteRecord, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, "list", http.MethodGet, "/videos", ownerQuery{OwnerID: ownerID}, nil, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []model.RemoteRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, model.Unreachable("list", err)
		}
		return records, nil
	}
	var wrapped listResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, model.Unreachable("list", err)
	}
	return wrapped.Items, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.RemoteRecord, error) {
	var rec model.RemoteRecord
	_, err := c.do(ctx, "get", http.MethodGet, "/videos/"+url.PathEscape(id), nil, nil, &rec)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

func (c *Client) Update(ctx context.Context, id string, patch model.RemotePatch) (bool, error) {
	_, err := c.do(ctx, "update", http.MethodPatch, "/videos/"+url.PathEscape(id), nil, patch, nil)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	_, err := c.do(ctx, "delete", http.MethodDelete, "/videos/"+url.PathEscape(id), ownerQuery{OwnerID: ownerID}, nil, nil)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) ResetAll(ctx context.Context, ownerID, confirmationToken string) (int, error) {
	var out resetResponse
	if _, err := c.do(ctx, "reset", http.MethodPost, "/videos/reset", nil, resetRequest{OwnerID: ownerID, ConfirmationToken: confirmationToken}, &out); err != nil {
		return 0, err
	}
	if out.DeletedCount == nil {
		return 0, &model.GatewayError{Kind: model.GatewayUnreachable, Op: "reset", Message: "response carried no deletedCount"}
	}
	return *out.DeletedCount, nil
}

// do performs one bounded round trip. out is decoded only on 2xx; a body that is not
// JSON is reported as unreachable.
func (c *Client) do(ctx context.Context, op, method, path string, q interface{}, body interface{}, out interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if q != nil {
		values, err := query.Values(q)
		if err != nil {
			return 0, fmt.Errorf("encode %s query: %w", op, err)
		}
		if enc := values.Encode(); enc != "" {
			target += "?" + enc
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, &model.GatewayError{Kind: model.GatewayRejected, Op: op, Message: "payload not encodable", Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, model.Unreachable(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"op": op, "error": err}).Debug("Catalog round trip failed")
		return 0, model.Unreachable(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, model.Unreachable(op, err)
	}

	if kind, failed := classify(resp.StatusCode); failed {
		return resp.StatusCode, &model.GatewayError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, &model.GatewayError{Kind: model.GatewayUnreachable, Op: op, StatusCode: resp.StatusCode, Message: "empty response body"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &model.GatewayError{Kind: model.GatewayUnreachable, Op: op, StatusCode: resp.StatusCode, Message: "non-JSON response", Err: err}
	}
	return resp.StatusCode, nil
}

// classify maps a status code to a gateway error kind. 404 is NotFound, 408 and 429
// are transient and count as Unreachable, any other 4xx is Rejected, everything else
// outside 2xx is Unreachable.
func classify(status int) (model.GatewayErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusNotFound:
		return model.GatewayNotFound, true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return model.GatewayUnreachable, true
	case status >= 400 && status < 500:
		return model.GatewayRejected, true
	default:
		return model.GatewayUnreachable, true
	}
}

func errorMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
