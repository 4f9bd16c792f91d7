package leetcode

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Page represents capability interface over parsed submission page.
//
// Implementations correspond to incompatible site UI generations and
// never fail with error: absent value is a valid terminal result.
type Page interface {
	// IsAccepted reports whether latest submission was judged correct.
	IsAccepted() bool
	// ExtractCode extracts source code of latest submission.
	ExtractCode() (string, bool)
	// ExtractProblemInfo extracts basic problem metadata.
	ExtractProblemInfo() (ProblemInfo, bool)
	// SubmissionDetails builds submission from page or query API.
	SubmissionDetails(ctx context.Context) (Submission, bool)
}

// ParsePage parses document and returns page implementation matching
// site UI generation.
func ParsePage(r io.Reader, pageURL string, client *Client) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return DetectPage(doc, pageURL, client), nil
}

// DetectPage probes generation markers and returns page implementation.
func DetectPage(doc *html.Node, pageURL string, client *Client) Page {
	base := basePage{doc: doc, url: pageURL, client: client}
	// New UI is served as Next.js application.
	if findNode(doc, withID("__next")) != nil {
		return &modernPage{base}
	}
	return &legacyPage{base}
}

var acceptMarkers = []string{"accepted", "success", "correct", "passed"}

type basePage struct {
	doc    *html.Node
	url    string
	client *Client
}

func (p *basePage) titleSlug() (string, bool) {
	parts := strings.Split(p.url, "/problems/")
	if len(parts) < 2 {
		return "", false
	}
	slug := parts[1]
	if pos := strings.IndexRune(slug, '/'); pos >= 0 {
		slug = slug[:pos]
	}
	if pos := strings.IndexRune(slug, '?'); pos >= 0 {
		slug = slug[:pos]
	}
	return slug, len(slug) > 0
}

var submissionIDRegexp = regexp.MustCompile(`/submissions/(?:detail/)?(\d+)`)

func (p *basePage) submissionID() (int64, bool) {
	if match := submissionIDRegexp.FindStringSubmatch(p.url); match != nil {
		id, err := strconv.ParseInt(match[1], 10, 64)
		return id, err == nil
	}
	if node := findNode(p.doc, withAttrPresent("data-submission-id")); node != nil {
		id, err := strconv.ParseInt(getAttr(node, "data-submission-id"), 10, 64)
		return id, err == nil
	}
	return 0, false
}

// difficulty reads degree indicator or scans page text for keywords.
func (p *basePage) difficulty() string {
	if node := findNode(p.doc, withClassContains("difficulty")); node != nil {
		if value, ok := matchDifficulty(nodeText(node)); ok {
			return value
		}
	}
	if value, ok := matchDifficulty(nodeText(p.doc)); ok {
		return value
	}
	// Weak fallback for pages without difficulty indicator.
	return DifficultyEasy
}

func matchDifficulty(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, value := range []string{
		DifficultyHard, DifficultyMedium, DifficultyEasy,
	} {
		if strings.Contains(lower, strings.ToLower(value)) {
			return value, true
		}
	}
	return "", false
}

// compose builds submission from extracted page parts.
func (p *basePage) compose(impl Page, language string) (Submission, bool) {
	info, ok := impl.ExtractProblemInfo()
	if !ok {
		return Submission{}, false
	}
	code, ok := impl.ExtractCode()
	if !ok {
		return Submission{}, false
	}
	submission := Submission{
		QuestionID: info.ID,
		Title:      info.Title,
		TitleSlug:  info.TitleSlug,
		Difficulty: info.Difficulty,
		Language:   language,
		Code:       code,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if id, ok := p.submissionID(); ok {
		submission.ID = strconv.FormatInt(id, 10)
	} else {
		submission.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	submission.normalize()
	if err := submission.Validate(); err != nil {
		return Submission{}, false
	}
	return submission, true
}

// legacyPage represents old site UI generation.
type legacyPage struct {
	basePage
}

func (p *legacyPage) IsAccepted() bool {
	selectors := []func(*html.Node) bool{
		withID("result_state"),
		withClassContains("success"),
		withClassContains("submission-result"),
		withAttrPresent("aria-label"),
	}
	return checkAccepted(p.doc, selectors)
}

func (p *legacyPage) ExtractCode() (string, bool) {
	selectors := []func(*html.Node) bool{
		withClassContains("CodeMirror-code"),
		withTag("textarea"),
		withAttrPresent("contenteditable"),
	}
	return extractCode(p.doc, selectors)
}

func (p *legacyPage) ExtractProblemInfo() (ProblemInfo, bool) {
	slug, ok := p.titleSlug()
	if !ok {
		return ProblemInfo{}, false
	}
	title := ""
	if node := findNode(p.doc, withClassContains("question-title")); node != nil {
		title = nodeText(node)
	}
	if len(title) == 0 {
		title = titleFromHead(p.doc)
	}
	id, title := splitTitle(title)
	if len(title) == 0 {
		return ProblemInfo{}, false
	}
	return ProblemInfo{
		ID:         id,
		Title:      title,
		TitleSlug:  slug,
		Difficulty: p.difficulty(),
	}, true
}

func (p *legacyPage) SubmissionDetails(ctx context.Context) (Submission, bool) {
	return p.compose(p, p.language())
}

func (p *legacyPage) language() string {
	if node := findNode(p.doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "option" &&
			getAttr(n, "selected") != ""
	}); node != nil {
		return strings.TrimSpace(nodeText(node))
	}
	if node := findNode(p.doc, withClassContains("ant-select-selection-selected-value")); node != nil {
		return strings.TrimSpace(nodeText(node))
	}
	return ""
}

// modernPage represents new site UI generation.
type modernPage struct {
	basePage
}

func (p *modernPage) IsAccepted() bool {
	selectors := []func(*html.Node) bool{
		withAttr("data-e2e-locator", "submission-result"),
		withClassContains("text-green"),
		withClassContains("result"),
	}
	return checkAccepted(p.doc, selectors)
}

func (p *modernPage) ExtractCode() (string, bool) {
	selectors := []func(*html.Node) bool{
		withClassContains("view-lines"),
		withTag("code"),
		withTag("textarea"),
	}
	return extractCode(p.doc, selectors)
}

func (p *modernPage) ExtractProblemInfo() (ProblemInfo, bool) {
	slug, ok := p.titleSlug()
	if !ok {
		return ProblemInfo{}, false
	}
	title := ""
	if node := findNode(p.doc, withAttr("data-cy", "question-title")); node != nil {
		title = nodeText(node)
	}
	if len(title) == 0 {
		title = titleFromHead(p.doc)
	}
	id, title := splitTitle(title)
	if len(title) == 0 {
		return ProblemInfo{}, false
	}
	return ProblemInfo{
		ID:         id,
		Title:      title,
		TitleSlug:  slug,
		Difficulty: p.difficulty(),
	}, true
}

// SubmissionDetails prefers authoritative record from query API over
// DOM scraping.
func (p *modernPage) SubmissionDetails(ctx context.Context) (Submission, bool) {
	if id, ok := p.submissionID(); ok && p.client != nil {
		if submission, err := p.client.SubmissionDetails(ctx, id); err == nil {
			return submission, true
		}
	}
	return p.compose(p, p.language())
}

func (p *modernPage) language() string {
	if node := findNode(p.doc, withAttrPresent("data-mode-id")); node != nil {
		return getAttr(node, "data-mode-id")
	}
	if node := findNode(p.doc, withClassContains("lang-select")); node != nil {
		return strings.TrimSpace(nodeText(node))
	}
	return ""
}

func checkAccepted(doc *html.Node, selectors []func(*html.Node) bool) bool {
	for _, selector := range selectors {
		node := findNode(doc, selector)
		if node == nil {
			continue
		}
		if matchesAcceptMarker(node) {
			return true
		}
	}
	return false
}

func matchesAcceptMarker(n *html.Node) bool {
	values := []string{
		nodeText(n),
		getAttr(n, "aria-label"),
		getAttr(n, "title"),
		getAttr(n, "class"),
	}
	for _, value := range values {
		lower := strings.ToLower(value)
		for _, marker := range acceptMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func extractCode(doc *html.Node, selectors []func(*html.Node) bool) (string, bool) {
	for _, selector := range selectors {
		node := findNode(doc, selector)
		if node == nil {
			continue
		}
		code := nodeText(node)
		if len(strings.TrimSpace(code)) > minCodeLength {
			return code, true
		}
	}
	return "", false
}

// splitTitle strips leading problem number like "1. Two Sum".
func splitTitle(title string) (string, string) {
	title = strings.TrimSpace(title)
	if pos := strings.Index(title, ". "); pos >= 0 {
		if _, err := strconv.Atoi(title[:pos]); err == nil {
			return title[:pos], title[pos+2:]
		}
	}
	return "", title
}

func titleFromHead(doc *html.Node) string {
	node := findNode(doc, withTag("title"))
	if node == nil {
		return ""
	}
	title := nodeText(node)
	if pos := strings.Index(title, " - "); pos >= 0 {
		title = title[:pos]
	}
	return title
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(text.String())
}

func withID(id string) func(*html.Node) bool {
	return withAttr("id", id)
}

func withTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func withAttr(name, value string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && getAttr(n, name) == value
	}
}

func withAttrPresent(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && len(getAttr(n, name)) > 0
	}
}

func withClassContains(value string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			strings.Contains(getAttr(n, "class"), value)
	}
}
