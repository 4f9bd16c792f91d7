// Package github provides client for GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized means that access token is missing, expired or revoked.
var ErrUnauthorized = errors.New("github: unauthorized")

// ErrRateLimited means that API rate limit is exceeded.
var ErrRateLimited = errors.New("github: rate limited")

// Error represents error response of GitHub API.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	URL     string `json:"documentation_url"`
}

// Error returns string representation of error.
func (e *Error) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("github: status %d", e.Code)
	}
	return fmt.Sprintf("github: %s (status %d)", e.Message, e.Code)
}

// StatusCode returns HTTP status code of error.
func (e *Error) StatusCode() int {
	return e.Code
}

// User represents authenticated GitHub user.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// Permissions represents permissions of user on repository.
type Permissions struct {
	Admin bool `json:"admin"`
	Push  bool `json:"push"`
	Pull  bool `json:"pull"`
}

// Repository represents GitHub repository.
type Repository struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	FullName      string      `json:"full_name"`
	Private       bool        `json:"private"`
	DefaultBranch string      `json:"default_branch"`
	Permissions   Permissions `json:"permissions"`
}

// Branch represents branch of repository.
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// FileContent represents file stored in repository.
type FileContent struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Decode returns decoded content of file.
func (f FileContent) Decode() ([]byte, error) {
	switch f.Encoding {
	case "base64":
		return base64.StdEncoding.DecodeString(
			strings.ReplaceAll(f.Content, "\n", ""),
		)
	case "", "none":
		return []byte(f.Content), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", f.Encoding)
	}
}

// CommitResult represents result of commit of single file.
type CommitResult struct {
	Content *FileContent `json:"content"`
	Commit  struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

// RateLimit represents state of API rate limit.
type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// Client represents client for GitHub REST API.
type Client struct {
	endpoint  string
	token     string
	userAgent string
	client    http.Client
}

// ClientOption modifies client.
type ClientOption func(*Client)

// WithTimeout overrides default request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithTransport overrides default HTTP transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

// WithUserAgent overrides default user agent.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient returns new GitHub API client with specified access token.
func NewClient(endpoint, token string, options ...ClientOption) *Client {
	c := Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		token:     token,
		userAgent: "leetsync",
		client: http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

// GetUser returns authenticated user.
//
// Returns ErrUnauthorized if access token is invalid.
func (c *Client) GetUser(ctx context.Context) (User, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/user"), nil,
	)
	if err != nil {
		return User{}, err
	}
	var respData User
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// GetRateLimit returns state of core API rate limit.
func (c *Client) GetRateLimit(ctx context.Context) (RateLimit, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/rate_limit"), nil,
	)
	if err != nil {
		return RateLimit{}, err
	}
	var respData struct {
		Resources struct {
			Core RateLimit `json:"core"`
		} `json:"resources"`
	}
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData.Resources.Core, err
}

// GetRepository returns repository by owner and name.
func (c *Client) GetRepository(
	ctx context.Context, owner, name string,
) (Repository, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/repos/%s/%s", owner, name), nil,
	)
	if err != nil {
		return Repository{}, err
	}
	var respData Repository
	err = c.doRequest(req, http.StatusOK, &respData)
	return respData, err
}

// ListRepositories returns repositories where user has push access.
//
// Repositories are ordered by last update, most recent first.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	for page := 1; ; page++ {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet,
			c.getURL("/user/repos?sort=updated&per_page=100&page=%d", page), nil,
		)
		if err != nil {
			return nil, err
		}
		var respData []Repository
		if err := c.doRequest(req, http.StatusOK, &respData); err != nil {
			return nil, err
		}
		for _, repo := range respData {
			if repo.Permissions.Push {
				repos = append(repos, repo)
			}
		}
		if len(respData) < 100 {
			break
		}
	}
	return repos, nil
}

// ListBranches returns branches of repository.
func (c *Client) ListBranches(
	ctx context.Context, owner, name string,
) ([]Branch, error) {
	var branches []Branch
	for page := 1; ; page++ {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet,
			c.getURL("/repos/%s/%s/branches?per_page=100&page=%d", owner, name, page),
			nil,
		)
		if err != nil {
			return nil, err
		}
		var respData []Branch
		if err := c.doRequest(req, http.StatusOK, &respData); err != nil {
			return nil, err
		}
		branches = append(branches, respData...)
		if len(respData) < 100 {
			break
		}
	}
	return branches, nil
}

// GetFile returns file stored in repository on specified branch.
//
// Returns nil without error if file does not exist.
func (c *Client) GetFile(
	ctx context.Context, owner, name, path, branch string,
) (*FileContent, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.getURL("/repos/%s/%s/contents/%s?ref=%s",
			owner, name, escapePath(path), url.QueryEscape(branch)),
		nil,
	)
	if err != nil {
		return nil, err
	}
	var respData FileContent
	if err := c.doRequest(req, http.StatusOK, &respData); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &respData, nil
}

// DirEntry represents entry of repository directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

// ListContents returns entries of repository directory.
//
// Returns empty listing without error if directory does not exist.
func (c *Client) ListContents(
	ctx context.Context, owner, name, path, branch string,
) ([]DirEntry, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.getURL("/repos/%s/%s/contents/%s?ref=%s",
			owner, name, escapePath(path), url.QueryEscape(branch)),
		nil,
	)
	if err != nil {
		return nil, err
	}
	var respData []DirEntry
	if err := c.doRequest(req, http.StatusOK, &respData); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return respData, nil
}

// UpdateFileForm represents form for committing single file.
type UpdateFileForm struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// CommitFile commits single file to repository on specified branch.
//
// Existing file is overwritten using SHA of its current blob.
func (c *Client) CommitFile(
	ctx context.Context, owner, name, path, branch, message string,
	content []byte,
) (CommitResult, error) {
	file, err := c.GetFile(ctx, owner, name, path, branch)
	if err != nil {
		return CommitResult{}, err
	}
	form := UpdateFileForm{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
	}
	if file != nil {
		form.SHA = file.SHA
	}
	data, err := json.Marshal(form)
	if err != nil {
		return CommitResult{}, err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPut,
		c.getURL("/repos/%s/%s/contents/%s", owner, name, escapePath(path)),
		bytes.NewReader(data),
	)
	if err != nil {
		return CommitResult{}, err
	}
	var respData CommitResult
	if err := c.doRequest(req, 0, &respData); err != nil {
		return CommitResult{}, err
	}
	return respData, nil
}

func (c *Client) getURL(path string, args ...any) string {
	return c.endpoint + fmt.Sprintf(path, args...)
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (c *Client) doRequest(req *http.Request, code int, respData any) error {
	if req.Body != nil && len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if len(c.token) > 0 {
		req.Header.Set("Authorization", "token "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	// Commits are created with 201 and updated with 200.
	ok := resp.StatusCode == code ||
		(code == 0 && resp.StatusCode >= 200 && resp.StatusCode < 300)
	if !ok {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden, http.StatusTooManyRequests:
			if resp.Header.Get("X-RateLimit-Remaining") == "0" {
				return ErrRateLimited
			}
		}
		respErr := Error{Code: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&respErr); err != nil {
			return &Error{Code: resp.StatusCode}
		}
		return &respErr
	}
	if respData != nil {
		return json.NewDecoder(resp.Body).Decode(respData)
	}
	return nil
}
