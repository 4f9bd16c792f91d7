// Package api implements HTTP API for leetsync daemon.
package api

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/github"
	"github.com/leetsync/leetsync/internal/leetcode"
	"github.com/leetsync/leetsync/internal/managers"
	"github.com/leetsync/leetsync/internal/models"
	"github.com/leetsync/leetsync/internal/pkg/logs"
	"github.com/leetsync/leetsync/internal/syncer"
)

// View represents API view.
type View struct {
	core        *core.Core
	credentials *managers.CredentialsManager
	syncer      *syncer.Syncer
}

// NewView returns a new instance of view.
func NewView(
	core *core.Core,
	credentials *managers.CredentialsManager,
	syncer *syncer.Syncer,
) *View {
	return &View{
		core:        core,
		credentials: credentials,
		syncer:      syncer,
	}
}

// Register registers handlers in specified group.
func (v *View) Register(g *echo.Group) {
	g.Use(wrapResponse)
	g.GET("/ping", v.ping)
	g.GET("/health", v.health)
	g.POST("/v0/submissions", v.createSubmission)
	g.POST("/v0/pages", v.createPage)
	g.POST("/v0/auth", v.authenticate)
	g.GET("/v0/status", v.status)
	g.GET("/v0/queue", v.observeQueue)
	g.POST("/v0/queue/process", v.processQueue)
	g.POST("/v0/queue/:commit/retry", v.retryCommit)
	g.DELETE("/v0/queue/:commit", v.deleteCommit)
	g.POST("/v0/files", v.upsertFile)
	g.GET("/v0/repos", v.observeRepos)
	g.GET("/v0/repos/:owner/:name/branches", v.observeBranches)
}

// ping returns pong.
func (v *View) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// health returns current healthiness status.
func (v *View) health(c echo.Context) error {
	if err := v.core.DB.Ping(); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, "unhealthy")
	}
	return c.String(http.StatusOK, "healthy")
}

// createSubmission runs immediate commit path for accepted submission.
func (v *View) createSubmission(c echo.Context) error {
	var submission leetcode.Submission
	if err := c.Bind(&submission); err != nil {
		c.Logger().Warn(err)
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid submission",
		}
	}
	if err := submission.Validate(); err != nil {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		}
	}
	result, err := v.syncer.Sync(c.Request().Context(), submission)
	if err != nil {
		if result.Queued {
			c.Logger().Warn(err)
			return c.JSON(http.StatusAccepted, result)
		}
		return v.commitError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// PageForm represents captured submission page.
type PageForm struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// createPage extracts accepted submission from captured page and runs
// immediate commit path.
func (v *View) createPage(c echo.Context) error {
	var form PageForm
	if err := c.Bind(&form); err != nil {
		c.Logger().Warn(err)
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid form",
		}
	}
	if len(form.Content) == 0 {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "empty content",
		}
	}
	client, err := v.pageClient()
	if err != nil {
		return err
	}
	page, err := leetcode.ParsePage(
		strings.NewReader(form.Content), form.URL, client,
	)
	if err != nil {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid page",
		}
	}
	if !page.IsAccepted() {
		return c.JSON(http.StatusOK, syncer.Result{Skipped: true})
	}
	submission, ok := page.SubmissionDetails(c.Request().Context())
	if !ok {
		return errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: "unable to extract submission",
		}
	}
	result, err := v.syncer.Sync(c.Request().Context(), submission)
	if err != nil {
		if result.Queued {
			c.Logger().Warn(err)
			return c.JSON(http.StatusAccepted, result)
		}
		return v.commitError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// pageClient builds query API client from daemon config.
func (v *View) pageClient() (*leetcode.Client, error) {
	cfg := v.core.Config.LeetCode
	endpoint := cfg.Endpoint
	if len(endpoint) == 0 {
		endpoint = "https://leetcode.com/graphql"
	}
	var options []leetcode.ClientOption
	if cfg.Session != nil {
		session, err := cfg.Session.Secret()
		if err != nil {
			return nil, err
		}
		options = append(options, leetcode.WithSession(session))
	}
	return leetcode.NewClient(endpoint, options...), nil
}

// AuthForm represents authentication form.
type AuthForm struct {
	Token  string `json:"token"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// AuthStatus represents result of authentication.
type AuthStatus struct {
	Login  string              `json:"login"`
	Config managers.RepoConfig `json:"config"`
}

// authenticate validates access token and stores credentials.
func (v *View) authenticate(c echo.Context) error {
	var form AuthForm
	if err := c.Bind(&form); err != nil {
		c.Logger().Warn(err)
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid form",
		}
	}
	if len(form.Token) == 0 {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "empty token",
		}
	}
	login, err := v.credentials.Store(
		c.Request().Context(), form.Token, managers.RepoConfig{
			Owner:  form.Owner,
			Name:   form.Repo,
			Branch: form.Branch,
		},
	)
	if err != nil {
		return v.commitError(err)
	}
	// Stored credentials unblock queued commits.
	v.syncer.ProcessQueue()
	return c.JSON(http.StatusOK, AuthStatus{
		Login:  login,
		Config: v.credentials.GetConfig(),
	})
}

// status returns daemon sync status.
func (v *View) status(c echo.Context) error {
	return c.JSON(http.StatusOK, v.syncer.GetStatus())
}

// QueueItem represents queued commit.
type QueueItem struct {
	ID          int64  `json:"id"`
	RefID       string `json:"ref_id"`
	Status      string `json:"status"`
	Title       string `json:"title,omitempty"`
	TitleSlug   string `json:"title_slug,omitempty"`
	EnqueueTime int64  `json:"enqueue_time"`
	RetryCount  int64  `json:"retry_count"`
	LastError   string `json:"last_error,omitempty"`
}

// Queue represents queue of commits.
type Queue struct {
	Items []QueueItem `json:"items"`
}

// observeQueue returns current queue of commits.
func (v *View) observeQueue(c echo.Context) error {
	commits, err := v.core.Commits.All()
	if err != nil {
		return err
	}
	resp := Queue{Items: []QueueItem{}}
	for _, commit := range commits {
		item := QueueItem{
			ID:          commit.ID,
			RefID:       commit.RefID(),
			Status:      commit.Status.String(),
			EnqueueTime: commit.EnqueueTime,
			RetryCount:  commit.RetryCount,
			LastError:   string(commit.LastError),
		}
		var submission leetcode.Submission
		if err := commit.ScanSubmission(&submission); err == nil {
			item.Title = submission.Title
			item.TitleSlug = submission.TitleSlug
		}
		resp.Items = append(resp.Items, item)
	}
	return c.JSON(http.StatusOK, resp)
}

// processQueue triggers queue drain.
func (v *View) processQueue(c echo.Context) error {
	v.syncer.ProcessQueue()
	return c.JSON(http.StatusOK, v.syncer.GetStatus())
}

// retryCommit resets retry budget of queued commit.
func (v *View) retryCommit(c echo.Context) error {
	commit, err := v.findCommit(c)
	if err != nil {
		return err
	}
	commit.Kind = models.RetryCommit
	commit.Status = models.QueuedCommit
	commit.RetryCount = 0
	commit.LastError = ""
	if err := v.core.Commits.Update(c.Request().Context(), commit); err != nil {
		return err
	}
	v.syncer.ProcessQueue()
	return c.JSON(http.StatusOK, QueueItem{
		ID:     commit.ID,
		RefID:  commit.RefID(),
		Status: commit.Status.String(),
	})
}

// deleteCommit removes commit from queue.
func (v *View) deleteCommit(c echo.Context) error {
	commit, err := v.findCommit(c)
	if err != nil {
		return err
	}
	if err := v.core.Commits.Delete(c.Request().Context(), commit.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, QueueItem{
		ID:    commit.ID,
		RefID: commit.RefID(),
	})
}

// UpsertFileForm represents manual file commit form.
type UpsertFileForm struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Content string `json:"content"`
}

// UpsertFileStatus represents result of manual file commit.
type UpsertFileStatus struct {
	CommitURL string `json:"commit_url"`
}

// upsertFile commits single file with explicit message.
func (v *View) upsertFile(c echo.Context) error {
	var form UpsertFileForm
	if err := c.Bind(&form); err != nil {
		c.Logger().Warn(err)
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid form",
		}
	}
	if len(form.Path) == 0 {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "empty path",
		}
	}
	message := form.Message
	if len(message) == 0 {
		message = fmt.Sprintf("Update %s", form.Path)
	}
	result, err := v.syncer.UpsertFile(
		c.Request().Context(), form.Path, message, []byte(form.Content),
	)
	if err != nil {
		return v.commitError(err)
	}
	return c.JSON(http.StatusOK, UpsertFileStatus{
		CommitURL: result.Commit.HTMLURL,
	})
}

// Repo represents remote repository available for sync.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// Repos represents list of remote repositories.
type Repos struct {
	Repos []Repo `json:"repos"`
}

// observeRepos returns repositories writable with stored token.
func (v *View) observeRepos(c echo.Context) error {
	client, _, err := v.syncer.Client(c.Request().Context())
	if err != nil {
		return v.commitError(err)
	}
	repos, err := client.ListRepositories(c.Request().Context())
	if err != nil {
		return v.commitError(err)
	}
	resp := Repos{Repos: []Repo{}}
	for _, repo := range repos {
		resp.Repos = append(resp.Repos, Repo{
			Name:          repo.Name,
			FullName:      repo.FullName,
			Private:       repo.Private,
			DefaultBranch: repo.DefaultBranch,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// Branches represents list of repository branches.
type Branches struct {
	Branches []string `json:"branches"`
}

// observeBranches returns branches of specified repository.
func (v *View) observeBranches(c echo.Context) error {
	client, _, err := v.syncer.Client(c.Request().Context())
	if err != nil {
		return v.commitError(err)
	}
	branches, err := client.ListBranches(
		c.Request().Context(), c.Param("owner"), c.Param("name"),
	)
	if err != nil {
		return v.commitError(err)
	}
	resp := Branches{Branches: []string{}}
	for _, branch := range branches {
		resp.Branches = append(resp.Branches, branch.Name)
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) findCommit(c echo.Context) (models.Commit, error) {
	id, err := strconv.ParseInt(c.Param("commit"), 10, 64)
	if err != nil {
		return models.Commit{}, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid commit ID",
		}
	}
	commit, err := v.core.Commits.Get(id)
	if err != nil {
		return models.Commit{}, errorResponse{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("commit %d not found", id),
		}
	}
	return commit, nil
}

// commitError maps commit protocol errors to API responses.
func (v *View) commitError(err error) error {
	switch {
	case errors.Is(err, managers.ErrAuthRequired):
		return errorResponse{
			Code:    http.StatusForbidden,
			Message: "authentication required",
		}
	case errors.Is(err, managers.ErrAuthInvalid):
		return errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "authentication invalid",
		}
	case errors.Is(err, github.ErrRateLimited):
		return errorResponse{
			Code:    http.StatusTooManyRequests,
			Message: "rate limited, retry later",
		}
	}
	return err
}

type statusCodeResponse interface {
	StatusCode() int
}

type errorResponse struct {
	// Code.
	Code int `json:"-"`
	// Message.
	Message string `json:"message"`
}

// StatusCode returns HTTP status code.
func (r errorResponse) StatusCode() int {
	return r.Code
}

// Error returns message string.
func (r errorResponse) Error() string {
	return r.Message
}

var (
	randMutex  sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randUint32() uint32 {
	randMutex.Lock()
	defer randMutex.Unlock()
	return randSource.Uint32()
}

func wrapResponse(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = fmt.Sprintf("%d-%d", time.Now().UnixMilli(), randUint32())
		}
		logger := c.Logger().(*logs.Logger).With(logs.Any("req_id", reqID))
		c.SetLogger(logger)
		c.Response().Header().Add(echo.HeaderXRequestID, reqID)
		c.Response().Header().Add("X-Leetsync-Version", config.Version)
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
		}
		defer func() {
			finish := time.Now()
			message := fmt.Sprintf("%s %s", c.Request().Method, c.Request().RequestURI)
			args := []any{
				message,
				logs.Any("status", status),
				logs.Any("method", c.Request().Method),
				logs.Any("path", c.Path()),
				logs.Any("latency", finish.Sub(start)),
				err,
			}
			switch {
			case status >= 500:
				logger.Error(args...)
			case status >= 400:
				logger.Warn(args...)
			default:
				logger.Info(args...)
			}
		}()
		if resp, ok := err.(statusCodeResponse); ok {
			status = resp.StatusCode()
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return c.JSON(status, resp)
		}
		return err
	}
}
