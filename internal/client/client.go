// Package client talks to a marksync server. Client is a remote record
// store and Feed a remote change feed; together they drive a syncer from
// another process.
package client

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

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// DefaultTimeout bounds each REST call.
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps status codes onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalid
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// Client is the REST side of the API, authenticated with a bearer token.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: u, token: token, http: httpClient}, nil
}

// ListByOwner fetches the caller's bookmarks. The server scopes the list
// to the token's identity; rows for any other owner are dropped.
func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	var list []domain.Bookmark
	if err := c.do(ctx, http.MethodGet, "api/bookmarks", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	out := list[:0]
	for _, b := range list {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Insert creates a bookmark. The owner is taken from the token.
func (c *Client) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	body := map[string]string{"title": nb.Title, "url": nb.URL}
	var b domain.Bookmark
	if err := c.do(ctx, http.MethodPost, "api/bookmarks", body, http.StatusCreated, &b); err != nil {
		return domain.Bookmark{}, err
	}
	return b, nil
}

// Delete removes a bookmark by ID.
func (c *Client) Delete(ctx context.Context, _ string, id string) error {
	return c.do(ctx, http.MethodDelete, "api/bookmarks/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Logout revokes the client's token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "auth/logout", nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("server url must be http or https")
	}
	if u.Host == "" {
		return nil, errors.New("server url has no host")
	}
	return u, nil
}
