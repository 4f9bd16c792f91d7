package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client represents client for LeetCode GraphQL API.
type Client struct {
	endpoint string
	session  string
	client   http.Client
}

// ClientOption modifies client.
type ClientOption func(*Client)

// WithSession attaches session cookie to all requests.
func WithSession(session string) ClientOption {
	return func(c *Client) {
		c.session = session
	}
}

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

// NewClient returns new GraphQL API client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	c := Client{
		endpoint: endpoint,
		client: http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

const submissionDetailsQuery = `query submissionDetails($submissionId: Int!) {
  submissionDetails(submissionId: $submissionId) {
    runtimeDisplay
    runtimePercentile
    memoryDisplay
    memoryPercentile
    code
    timestamp
    lang {
      name
      verboseName
    }
    question {
      questionId
      title
      titleSlug
      difficulty
      topicTags {
        name
      }
    }
  }
}`

const recentSubmissionsQuery = `query recentSubmissionList($username: String!, $limit: Int!) {
  recentSubmissionList(username: $username, limit: $limit) {
    id
    title
    titleSlug
    timestamp
    statusDisplay
    lang
  }
}`

// RecentSubmission represents entry of recent submission list.
type RecentSubmission struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"statusDisplay"`
	Language  string `json:"lang"`
}

// Accepted reports whether submission was judged correct.
func (s RecentSubmission) Accepted() bool {
	return s.Status == "Accepted"
}

type submissionDetailsResponse struct {
	RuntimeDisplay    string  `json:"runtimeDisplay"`
	RuntimePercentile float64 `json:"runtimePercentile"`
	MemoryDisplay     string  `json:"memoryDisplay"`
	MemoryPercentile  float64 `json:"memoryPercentile"`
	Code              string  `json:"code"`
	Timestamp         int64   `json:"timestamp"`
	Lang              struct {
		Name        string `json:"name"`
		VerboseName string `json:"verboseName"`
	} `json:"lang"`
	Question struct {
		QuestionID string `json:"questionId"`
		Title      string `json:"title"`
		TitleSlug  string `json:"titleSlug"`
		Difficulty string `json:"difficulty"`
		TopicTags  []struct {
			Name string `json:"name"`
		} `json:"topicTags"`
	} `json:"question"`
}

// SubmissionDetails returns submission with question metadata by ID.
func (c *Client) SubmissionDetails(ctx context.Context, id int64) (Submission, error) {
	var respData struct {
		SubmissionDetails *submissionDetailsResponse `json:"submissionDetails"`
	}
	if err := c.doQuery(ctx, submissionDetailsQuery, map[string]any{
		"submissionId": id,
	}, &respData); err != nil {
		return Submission{}, err
	}
	details := respData.SubmissionDetails
	if details == nil {
		return Submission{}, fmt.Errorf("submission %d not found", id)
	}
	language := details.Lang.VerboseName
	if len(language) == 0 {
		language = details.Lang.Name
	}
	var tags []string
	for _, tag := range details.Question.TopicTags {
		tags = append(tags, tag.Name)
	}
	submission := Submission{
		ID:                strconv.FormatInt(id, 10),
		QuestionID:        details.Question.QuestionID,
		Title:             details.Question.Title,
		TitleSlug:         details.Question.TitleSlug,
		Difficulty:        details.Question.Difficulty,
		Tags:              tags,
		Language:          language,
		Code:              details.Code,
		Runtime:           details.RuntimeDisplay,
		Memory:            details.MemoryDisplay,
		RuntimePercentile: details.RuntimePercentile,
		MemoryPercentile:  details.MemoryPercentile,
	}
	if details.Timestamp > 0 {
		submission.Timestamp = time.Unix(details.Timestamp, 0).UTC().Format(time.RFC3339)
	}
	submission.normalize()
	if err := submission.Validate(); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// RecentSubmissions returns recent submissions of specified user.
func (c *Client) RecentSubmissions(
	ctx context.Context, username string, limit int,
) ([]RecentSubmission, error) {
	var respData struct {
		RecentSubmissionList []RecentSubmission `json:"recentSubmissionList"`
	}
	if err := c.doQuery(ctx, recentSubmissionsQuery, map[string]any{
		"username": username,
		"limit":    limit,
	}, &respData); err != nil {
		return nil, err
	}
	return respData.RecentSubmissionList, nil
}

func (c *Client) doQuery(
	ctx context.Context, query string, variables map[string]any, data any,
) error {
	reqData, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqData),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(c.session) > 0 {
		req.AddCookie(&http.Cookie{Name: "LEETCODE_SESSION", Value: c.session})
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leetcode: status %d", resp.StatusCode)
	}
	var respData struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return err
	}
	if len(respData.Errors) > 0 {
		var messages []string
		for _, respErr := range respData.Errors {
			messages = append(messages, respErr.Message)
		}
		return fmt.Errorf("leetcode: %s", strings.Join(messages, "; "))
	}
	if data != nil {
		return json.Unmarshal(respData.Data, data)
	}
	return nil
}
