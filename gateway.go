package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Gateway is the single chokepoint for backend calls. It attaches the current
// bearer token, invalidates the store on a 401, and normalizes server and
// transport failures into the package error taxonomy. Token invalidation is
// the only mutation it performs.
type Gateway struct {
	baseURL string
	client  *http.Client
	store   *TokenStore
	logger  Logger
}

// GatewayOption customizes Gateway construction.
type GatewayOption func(*Gateway)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithGatewayLogger overrides the default logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a gateway for the backend at baseURL reading bearer
// tokens from store.
func NewGateway(baseURL string, store *TokenStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		store:   store,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// apiError is the backend's structured error payload.
type apiError struct {
	Error string `json:"error"`
}

// Get issues a GET request and decodes the JSON response into out.
func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body and decodes the response into out.
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body and decodes the response into out.
func (g *Gateway) Put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	return g.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do routes one request through the gateway. A missing token is not an error;
// the request is sent without an Authorization header (pre-login and public
// calls). out may be nil when the response body is irrelevant.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	requestID := uuid.NewString()
	url := g.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token := g.store.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		g.logger.Debug("sending unauthenticated request %s %s request_id=%s", method, path, requestID)
	}

	res, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("transport failure %s %s request_id=%s: %v", method, path, requestID, err)
		clone := ErrTransport.Clone()
		clone.Source = err
		return clone.WithMetadata(map[string]any{
			"request_id": requestID,
			"method":     method,
			"path":       path,
		})
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		clone := ErrTransport.Clone()
		clone.Source = err
		return clone.WithMetadata(map[string]any{
			"request_id": requestID,
			"method":     method,
			"path":       path,
		})
	}

	if res.StatusCode >= http.StatusBadRequest {
		return g.normalizeFailure(ctx, res.StatusCode, raw, method, path, requestID)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal,
				fmt.Sprintf("failed to decode %s %s response", method, path))
		}
	}
	return nil
}

func (g *Gateway) normalizeFailure(ctx context.Context, status int, raw []byte, method, path, requestID string) error {
	var payload apiError
	_ = json.Unmarshal(raw, &payload)

	meta := map[string]any{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
		"body":       string(raw),
	}
	if payload.Error != "" {
		meta["response_message"] = payload.Error
	}

	if status == http.StatusUnauthorized {
		// drop the rejected token so no later request reuses it; re-login
		// is the caller's decision
		g.store.Clear(ctx)
		g.logger.Info("invalidated token after 401 on %s %s request_id=%s", method, path, requestID)
		clone := ErrUnauthorized.Clone()
		if payload.Error != "" {
			clone.Message = payload.Error
		}
		return clone.WithMetadata(meta)
	}

	clone := ErrBackend.Clone()
	if payload.Error != "" {
		clone.Message = payload.Error
	}
	switch status {
	case http.StatusBadRequest:
		clone = clone.WithCode(goerrors.CodeBadRequest)
	case http.StatusForbidden:
		clone = clone.WithCode(goerrors.CodeForbidden)
	case http.StatusNotFound:
		clone = clone.WithCode(goerrors.CodeNotFound)
	case http.StatusConflict:
		clone = clone.WithCode(goerrors.CodeConflict)
	}
	return clone.WithMetadata(meta)
}
