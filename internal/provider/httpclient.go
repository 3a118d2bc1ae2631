package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/outreach-engine/internal/pkg/httpretry"
)

// HTTPClient talks to the provider's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// Options configures the HTTP provider client.
type Options struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	MaxRetries     int
}

// NewHTTPClient creates a provider API client with retrying transport.
func NewHTTPClient(opts Options) *HTTPClient {
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &HTTPClient{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, retries),
	}
}

// apiError is the provider's error envelope.
type apiError struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// doRequest makes an HTTP request to the provider API and decodes errors
// into typed *Error values.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	if c.apiKey == "" {
		return nil, &Error{Code: CodeNotConfigured, Detail: "provider API key is not set"}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	var ae apiError
	if json.Unmarshal(respBody, &ae) == nil && ae.Type != "" {
		return nil, &Error{Code: ae.Type, Detail: ae.Detail, Status: resp.StatusCode}
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, &Error{Code: CodeRateLimited, Detail: string(respBody), Status: resp.StatusCode}
	case http.StatusNotFound:
		return nil, &Error{Code: CodeNotFound, Detail: string(respBody), Status: resp.StatusCode}
	default:
		return nil, &Error{Code: "api_error", Detail: string(respBody), Status: resp.StatusCode}
	}
}

func (c *HTTPClient) VisitProfile(ctx context.Context, accountID, identifier string, notify bool) (*Profile, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("notify", fmt.Sprintf("%t", notify))

	body, err := c.doRequest(ctx, http.MethodGet, "/users/"+url.PathEscape(identifier), params, nil)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return &p, nil
}

func (c *HTTPClient) SendInvitation(ctx context.Context, accountID, providerID, message string) error {
	payload := map[string]string{
		"account_id":  accountID,
		"provider_id": providerID,
		"message":     message,
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/users/invite", nil, payload)
	return err
}

func (c *HTTPClient) StartOrContinueChat(ctx context.Context, accountID string, providerIDs []string, text string) error {
	payload := map[string]interface{}{
		"account_id":   accountID,
		"attendee_ids": providerIDs,
		"text":         text,
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/chats", nil, payload)
	return err
}

func (c *HTTPClient) ReactToPost(ctx context.Context, accountID, postID, reactionType string) error {
	if !ValidReaction(reactionType) {
		reactionType = ReactionLike
	}
	payload := map[string]string{
		"account_id":    accountID,
		"post_id":       postID,
		"reaction_type": reactionType,
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/posts/reaction", nil, payload)
	return err
}

func (c *HTTPClient) CommentPost(ctx context.Context, accountID, postID, text string) error {
	payload := map[string]string{
		"account_id": accountID,
		"text":       text,
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", nil, payload)
	return err
}

func (c *HTTPClient) ListRecentPosts(ctx context.Context, accountID, identifier string, lastDays, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/users/"+url.PathEscape(identifier)+"/posts", params, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []Post `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing posts: %w", err)
	}

	// The API pages by count, not by age; apply the age filter here.
	if lastDays <= 0 {
		lastDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -lastDays)
	var recent []Post
	for _, p := range out.Items {
		if p.PostedAt.After(cutoff) {
			recent = append(recent, p)
		}
	}
	return recent, nil
}

func (c *HTTPClient) ListInvitationsSent(ctx context.Context, accountID string) ([]Invitation, error) {
	params := url.Values{}
	params.Set("account_id", accountID)

	body, err := c.doRequest(ctx, http.MethodGet, "/users/invite/sent", params, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []Invitation `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing invitations: %w", err)
	}
	return out.Items, nil
}

func (c *HTTPClient) CancelInvitation(ctx context.Context, accountID, invitationID string) error {
	params := url.Values{}
	params.Set("account_id", accountID)
	_, err := c.doRequest(ctx, http.MethodDelete, "/users/invite/"+url.PathEscape(invitationID), params, nil)
	return err
}

func (c *HTTPClient) IsConnected(ctx context.Context, accountID, identifier string) (bool, error) {
	p, err := c.VisitProfile(ctx, accountID, identifier, false)
	if err != nil {
		return false, err
	}
	return p.IsConnection, nil
}
