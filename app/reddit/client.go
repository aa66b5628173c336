package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"userpinger/app/cfg"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
)

// Client talks to the Reddit JSON API using a script-app password grant.
// All methods classify failures into the transient error taxonomy so the
// stream loop can back off uniformly.
type Client struct {
	httpClient   *http.Client
	subreddit    string
	userAgent    string
	clientID     string
	clientSecret string
	username     string
	password     string

	token       string
	tokenExpiry time.Time
}

func NewClient(httpClient *http.Client) *Client {
	c := cfg.Get()

	return &Client{
		httpClient:   httpClient,
		subreddit:    c.Subreddit,
		userAgent:    c.UserAgent,
		clientID:     c.ClientID,
		clientSecret: c.ClientSecret,
		username:     c.Username,
		password:     c.Password,
	}
}

// Reply posts a reply to the thing identified by parentID and returns the
// fullname of the created comment, which is the edit target for EditReply.
func (c *Client) Reply(ctx context.Context, parentID, text string) (string, error) {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {parentID},
		"text":     {text},
	}

	var result struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				Things []struct {
					Data struct {
						Name string `json:"name"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}

	if err := c.postForm(ctx, "/api/comment", form, &result); err != nil {
		return "", fmt.Errorf("failed to post reply: %w", err)
	}

	if len(result.JSON.Errors) > 0 {
		return "", &ResponseError{StatusCode: http.StatusOK, Err: apiError(result.JSON.Errors)}
	}
	if len(result.JSON.Data.Things) == 0 {
		return "", &ResponseError{StatusCode: http.StatusOK, Err: fmt.Errorf("no comment returned")}
	}

	return result.JSON.Data.Things[0].Data.Name, nil
}

// EditReply replaces the body of a previously posted comment.
func (c *Client) EditReply(ctx context.Context, commentID, text string) error {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {commentID},
		"text":     {text},
	}

	var result struct {
		JSON struct {
			Errors [][]string `json:"errors"`
		} `json:"json"`
	}

	if err := c.postForm(ctx, "/api/editusertext", form, &result); err != nil {
		return fmt.Errorf("failed to edit reply: %w", err)
	}

	if len(result.JSON.Errors) > 0 {
		return &ResponseError{StatusCode: http.StatusOK, Err: apiError(result.JSON.Errors)}
	}

	return nil
}

// SendMessage sends a private message to a user. A nonexistent recipient is
// reported as ErrRecipientNotFound so batch sends can skip and continue.
func (c *Client) SendMessage(ctx context.Context, user, subject, body string) error {
	form := url.Values{
		"api_type": {"json"},
		"to":       {user},
		"subject":  {subject},
		"text":     {body},
	}

	var result struct {
		JSON struct {
			Errors [][]string `json:"errors"`
		} `json:"json"`
	}

	if err := c.postForm(ctx, "/api/compose", form, &result); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", user, err)
	}

	for _, apiErr := range result.JSON.Errors {
		if len(apiErr) > 0 && apiErr[0] == "USER_DOESNT_EXIST" {
			return fmt.Errorf("%w: %s", ErrRecipientNotFound, user)
		}
	}
	if len(result.JSON.Errors) > 0 {
		return &ResponseError{StatusCode: http.StatusOK, Err: apiError(result.JSON.Errors)}
	}

	return nil
}

// Moderators returns the current moderator usernames of the subreddit.
// Always a live fetch; the authorizer relies on this being authoritative.
func (c *Client) Moderators(ctx context.Context) ([]string, error) {
	var result struct {
		Data struct {
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/r/%s/about/moderators", c.subreddit)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("failed to get moderators: %w", err)
	}

	names := make([]string, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		names = append(names, child.Name)
	}

	return names, nil
}

// WikiPage returns the markdown content of a subreddit wiki page. A missing
// page is reported as ErrWikiPageNotFound; the process treats that as fatal
// at startup.
func (c *Client) WikiPage(ctx context.Context, page string) (string, error) {
	var result struct {
		Data struct {
			ContentMD string `json:"content_md"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/r/%s/wiki/%s", c.subreddit, page)
	if err := c.get(ctx, path, &result); err != nil {
		var responseErr *ResponseError
		if errors.As(err, &responseErr) && responseErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ErrWikiPageNotFound, page)
		}
		return "", fmt.Errorf("failed to get wiki page %s: %w", page, err)
	}

	return result.Data.ContentMD, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, v any) error {
	return c.do(ctx, http.MethodPost, path, form, v)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, v any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return &RequestError{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return &ResponseError{StatusCode: resp.StatusCode}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &ResponseError{StatusCode: resp.StatusCode, Err: err}
		}
	}

	return nil
}

// ensureToken fetches or refreshes the OAuth token. A small expiry margin
// avoids racing the token's actual expiration mid-request.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &RequestError{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return &ResponseError{StatusCode: resp.StatusCode}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return &ResponseError{StatusCode: resp.StatusCode, Err: err}
	}
	if token.AccessToken == "" {
		return &ResponseError{StatusCode: resp.StatusCode, Err: fmt.Errorf("empty access token")}
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	slog.Debug("Refreshed Reddit API token", "expires_in", token.ExpiresIn)

	return nil
}

func apiError(apiErrors [][]string) error {
	parts := make([]string, 0, len(apiErrors))
	for _, e := range apiErrors {
		parts = append(parts, strings.Join(e, " "))
	}
	return fmt.Errorf("api errors: %s", strings.Join(parts, "; "))
}
