package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"go-token-gate/internal/model"
)

const rotatedTokenHeader = "X-New-Access-Token"

var ErrNotSignedIn = errors.New("not signed in")

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

// Client keeps the access token in memory and the refresh token in its cookie jar. Protected
// calls refresh once on 401 and adopt rotated tokens from the response header.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	accessToken string
	user        model.AuthUser
}

// New returns a client for baseURL. A nil httpClient gets a default with a 10s timeout; a
// missing cookie jar is added either way.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("server URL is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

func (c *Client) SignIn(ctx context.Context, username string, password string) (model.AuthUser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/signin", nil)
	if err != nil {
		return model.AuthUser{}, err
	}
	req.SetBasicAuth(username, password)

	var out model.SignInResponse
	if err := c.send(req, &out); err != nil {
		return model.AuthUser{}, err
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.user = out.User
	c.mu.Unlock()

	return out.User, nil
}

func (c *Client) Posts(ctx context.Context) ([]string, error) {
	var out model.PostsResponse
	if err := c.doAuthed(ctx, http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

func (c *Client) AddPost(ctx context.Context, message string) ([]string, error) {
	body, err := json.Marshal(model.AddPostRequest{Message: message})
	if err != nil {
		return nil, err
	}

	var out model.AddPostResponse
	if err := c.doAuthed(ctx, http.MethodPost, "/posts", body, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// Refresh trades the refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/refresh", nil)
	if err != nil {
		return err
	}

	var out model.RefreshResponse
	if err := c.send(req, &out); err != nil {
		return err
	}

	c.setAccessToken(out.AccessToken)
	return nil
}

// Logout forgets the local session even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.accessToken = ""
		c.user = model.AuthUser{}
		c.mu.Unlock()
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/logout", nil)
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) User() (model.AuthUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.accessToken != ""
}

func (c *Client) doAuthed(ctx context.Context, method string, path string, body []byte, out any) error {
	if c.AccessToken() == "" {
		return ErrNotSignedIn
	}

	resp, err := c.sendAuthed(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := c.Refresh(ctx); err != nil {
			return err
		}

		resp, err = c.sendAuthed(ctx, method, path, body)
		if err != nil {
			return err
		}
	}

	return c.decode(resp, out)
}

func (c *Client) sendAuthed(ctx context.Context, method string, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer drain(resp)

	if rotated := resp.Header.Get(rotatedTokenHeader); rotated != "" && resp.StatusCode < http.StatusBadRequest {
		c.setAccessToken(rotated)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
