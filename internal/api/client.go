package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leetsync/leetsync/internal/leetcode"
	"github.com/leetsync/leetsync/internal/syncer"
)

// Client represents client for daemon API.
type Client struct {
	endpoint string
	client   http.Client
	Headers  map[string]string
}

// ClientOption modifies client.
type ClientOption func(*Client)

// WithTransport overrides default HTTP transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

// WithTimeout overrides default request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// NewClient returns new API client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	c := Client{
		endpoint: endpoint,
		client: http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/ping"), nil,
	)
	if err != nil {
		return err
	}
	return c.doRequest(req, http.StatusOK, nil)
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/health"), nil,
	)
	if err != nil {
		return err
	}
	return c.doRequest(req, http.StatusOK, nil)
}

// Authenticate stores access token and sync target in daemon.
func (c *Client) Authenticate(
	ctx context.Context, form AuthForm,
) (AuthStatus, error) {
	var respData AuthStatus
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/auth"), form,
		http.StatusOK, &respData,
	)
	return respData, err
}

// Status returns daemon sync status.
func (c *Client) Status(ctx context.Context) (syncer.Status, error) {
	var respData syncer.Status
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/status"), nil,
	)
	if err != nil {
		return respData, err
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// CreateSubmission commits accepted submission through daemon.
func (c *Client) CreateSubmission(
	ctx context.Context, submission leetcode.Submission,
) (syncer.Result, error) {
	var respData syncer.Result
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/submissions"), submission,
		0, &respData,
	)
	return respData, err
}

// CreatePage commits accepted submission extracted from captured page.
func (c *Client) CreatePage(
	ctx context.Context, form PageForm,
) (syncer.Result, error) {
	var respData syncer.Result
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/pages"), form,
		0, &respData,
	)
	return respData, err
}

// ObserveQueue returns current queue of commits.
func (c *Client) ObserveQueue(ctx context.Context) (Queue, error) {
	var respData Queue
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/queue"), nil,
	)
	if err != nil {
		return respData, err
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// ProcessQueue triggers queue drain.
func (c *Client) ProcessQueue(ctx context.Context) (syncer.Status, error) {
	var respData syncer.Status
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/queue/process"), nil,
		http.StatusOK, &respData,
	)
	return respData, err
}

// RetryCommit resets retry budget of queued commit.
func (c *Client) RetryCommit(ctx context.Context, id int64) (QueueItem, error) {
	var respData QueueItem
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/queue/%d/retry", id), nil,
		http.StatusOK, &respData,
	)
	return respData, err
}

// DeleteCommit removes commit from queue.
func (c *Client) DeleteCommit(ctx context.Context, id int64) (QueueItem, error) {
	var respData QueueItem
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.getURL("/v0/queue/%d", id), nil,
	)
	if err != nil {
		return respData, err
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// UpsertFile commits single file with explicit message.
func (c *Client) UpsertFile(
	ctx context.Context, form UpsertFileForm,
) (UpsertFileStatus, error) {
	var respData UpsertFileStatus
	err := c.doJSON(
		ctx, http.MethodPost, c.getURL("/v0/files"), form,
		http.StatusOK, &respData,
	)
	return respData, err
}

// ObserveRepos returns repositories writable with stored token.
func (c *Client) ObserveRepos(ctx context.Context) (Repos, error) {
	var respData Repos
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/repos"), nil,
	)
	if err != nil {
		return respData, err
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// ObserveBranches returns branches of specified repository.
func (c *Client) ObserveBranches(
	ctx context.Context, owner, name string,
) (Branches, error) {
	var respData Branches
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/v0/repos/%s/%s/branches", owner, name), nil,
	)
	if err != nil {
		return respData, err
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

func (c *Client) getURL(path string, args ...any) string {
	return c.endpoint + fmt.Sprintf(path, args...)
}

func (c *Client) doJSON(
	ctx context.Context, method, url string, reqData any,
	code int, respData any,
) error {
	var body bytes.Buffer
	if reqData != nil {
		if err := json.NewEncoder(&body).Encode(reqData); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &body)
	if err != nil {
		return err
	}
	return c.doRequest(req, code, respData)
}

func (c *Client) doRequest(req *http.Request, code int, respData any) error {
	if len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Add("Content-Type", "application/json")
	}
	for key, value := range c.Headers {
		req.Header.Add(key, value)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	ok := resp.StatusCode == code
	if code == 0 {
		ok = resp.StatusCode < 400
	}
	if !ok {
		var respErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&respErr); err != nil {
			return errorWithCode{
				Err:  fmt.Errorf("status code: %d", resp.StatusCode),
				Code: resp.StatusCode,
			}
		}
		respErr.Code = resp.StatusCode
		return &respErr
	}
	if respData != nil {
		return json.NewDecoder(resp.Body).Decode(respData)
	}
	return nil
}

type errorWithCode struct {
	Err  error
	Code int
}

func (r errorWithCode) Error() string {
	return r.Err.Error()
}

func (r errorWithCode) Unwrap() error {
	return r.Err
}
