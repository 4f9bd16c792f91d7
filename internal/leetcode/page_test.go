package leetcode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const legacyPageHTML = `<html>
<head><title>Two Sum - Submission Details - LeetCode</title></head>
<body>
<div id="app">
	<div id="result_state" class="text-danger">Wrong Answer</div>
	<div class="question-title">1. Two Sum</div>
	<span class="difficulty-label">Easy</span>
	<select name="lang">
		<option value="python">Python</option>
		<option value="python3" selected="selected">Python3</option>
	</select>
	<pre class="CodeMirror-code">class Solution:
    def twoSum(self, nums, target):
        seen = {}
        for i, x in enumerate(nums):
            if target - x in seen:
                return [seen[target - x], i]
            seen[x] = i</pre>
</div>
</body>
</html>`

const modernPageHTML = `<html>
<head><title>Two Sum - LeetCode</title></head>
<body>
<div id="__next">
	<span data-e2e-locator="submission-result" class="text-red">Wrong Answer</span>
	<div data-cy="question-title">1. Two Sum</div>
	<div class="text-difficulty-medium">Medium</div>
	<div class="editor" data-mode-id="golang">
		<div class="view-lines">func twoSum(nums []int, target int) []int {
	seen := map[int]int{}
	for i, x := range nums {
		if j, ok := seen[target-x]; ok {
			return []int{j, i}
		}
		seen[x] = i
	}
	return nil
}</div>
	</div>
</div>
</body>
</html>`

func parseTestPage(tb testing.TB, page, pageURL string, client *Client) Page {
	result, err := ParsePage(strings.NewReader(page), pageURL, client)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	return result
}

func acceptedPage(page string) string {
	page = strings.Replace(page, "Wrong Answer", "Accepted", 1)
	page = strings.Replace(page, "text-danger", "text-success", 1)
	return strings.Replace(page, "text-red", "text-green", 1)
}

func TestDetectPage(t *testing.T) {
	legacyURL := "https://leetcode.com/problems/two-sum/submissions/"
	if _, ok := parseTestPage(t, legacyPageHTML, legacyURL, nil).(*legacyPage); !ok {
		t.Fatal("Expected legacy page")
	}
	modernURL := "https://leetcode.com/problems/two-sum/submissions/123456789/"
	if _, ok := parseTestPage(t, modernPageHTML, modernURL, nil).(*modernPage); !ok {
		t.Fatal("Expected modern page")
	}
}

func TestLegacyPage(t *testing.T) {
	pageURL := "https://leetcode.com/problems/two-sum/submissions/"
	page := parseTestPage(t, legacyPageHTML, pageURL, nil)
	if page.IsAccepted() {
		t.Fatal("Expected rejected verdict")
	}
	page = parseTestPage(t, acceptedPage(legacyPageHTML), pageURL, nil)
	if !page.IsAccepted() {
		t.Fatal("Expected accepted verdict")
	}
	code, ok := page.ExtractCode()
	if !ok {
		t.Fatal("Expected code")
	}
	if !strings.Contains(code, "def twoSum") {
		t.Errorf("Unexpected code: %q", code)
	}
	info, ok := page.ExtractProblemInfo()
	if !ok {
		t.Fatal("Expected problem info")
	}
	if info.ID != "1" {
		t.Errorf("Expected %q, got %q", "1", info.ID)
	}
	if info.Title != "Two Sum" {
		t.Errorf("Expected %q, got %q", "Two Sum", info.Title)
	}
	if info.TitleSlug != "two-sum" {
		t.Errorf("Expected %q, got %q", "two-sum", info.TitleSlug)
	}
	if info.Difficulty != DifficultyEasy {
		t.Errorf("Expected %q, got %q", DifficultyEasy, info.Difficulty)
	}
	submission, ok := page.SubmissionDetails(context.Background())
	if !ok {
		t.Fatal("Expected submission")
	}
	if submission.Language != "Python3" {
		t.Errorf("Expected %q, got %q", "Python3", submission.Language)
	}
	if submission.FileExtension != ".py" {
		t.Errorf("Expected %q, got %q", ".py", submission.FileExtension)
	}
	if submission.Link != "https://leetcode.com/problems/two-sum/" {
		t.Errorf("Unexpected link: %q", submission.Link)
	}
}

func TestModernPage(t *testing.T) {
	pageURL := "https://leetcode.com/problems/two-sum/submissions/123456789/"
	page := parseTestPage(t, modernPageHTML, pageURL, nil)
	if page.IsAccepted() {
		t.Fatal("Expected rejected verdict")
	}
	page = parseTestPage(t, acceptedPage(modernPageHTML), pageURL, nil)
	if !page.IsAccepted() {
		t.Fatal("Expected accepted verdict")
	}
	code, ok := page.ExtractCode()
	if !ok {
		t.Fatal("Expected code")
	}
	if !strings.Contains(code, "func twoSum") {
		t.Errorf("Unexpected code: %q", code)
	}
	info, ok := page.ExtractProblemInfo()
	if !ok {
		t.Fatal("Expected problem info")
	}
	if info.Title != "Two Sum" {
		t.Errorf("Expected %q, got %q", "Two Sum", info.Title)
	}
	if info.Difficulty != DifficultyMedium {
		t.Errorf("Expected %q, got %q", DifficultyMedium, info.Difficulty)
	}
	submission, ok := page.SubmissionDetails(context.Background())
	if !ok {
		t.Fatal("Expected submission")
	}
	if submission.ID != "123456789" {
		t.Errorf("Expected %q, got %q", "123456789", submission.ID)
	}
	if submission.Language != "golang" {
		t.Errorf("Expected %q, got %q", "golang", submission.Language)
	}
	if submission.FileExtension != ".go" {
		t.Errorf("Expected %q, got %q", ".go", submission.FileExtension)
	}
}

func TestModernPageDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"submissionDetails": map[string]any{
						"runtimeDisplay": "52 ms",
						"memoryDisplay":  "15.2 MB",
						"code":           "class Solution:\n    pass # placeholder",
						"timestamp":      1700000000,
						"lang": map[string]any{
							"name":        "python3",
							"verboseName": "Python3",
						},
						"question": map[string]any{
							"questionId": "1",
							"title":      "Two Sum",
							"titleSlug":  "two-sum",
							"difficulty": "Easy",
						},
					},
				},
			})
		},
	))
	defer server.Close()
	client := NewClient(server.URL)
	pageURL := "https://leetcode.com/problems/two-sum/submissions/123456789/"
	page := parseTestPage(t, acceptedPage(modernPageHTML), pageURL, client)
	submission, ok := page.SubmissionDetails(context.Background())
	if !ok {
		t.Fatal("Expected submission")
	}
	if submission.Runtime != "52 ms" {
		t.Errorf("Expected %q, got %q", "52 ms", submission.Runtime)
	}
	if submission.Language != "Python3" {
		t.Errorf("Expected %q, got %q", "Python3", submission.Language)
	}
	if submission.Timestamp != "2023-11-14T22:13:20Z" {
		t.Errorf("Unexpected timestamp: %q", submission.Timestamp)
	}
}

func TestPageShortCode(t *testing.T) {
	shortPage := `<html><body><div id="app">
	<div id="result_state" class="text-success">Accepted</div>
	<div class="question-title">1. Two Sum</div>
	<pre class="CodeMirror-code">x = 1</pre>
	</div></body></html>`
	pageURL := "https://leetcode.com/problems/two-sum/submissions/"
	page := parseTestPage(t, shortPage, pageURL, nil)
	if !page.IsAccepted() {
		t.Fatal("Expected accepted verdict")
	}
	if _, ok := page.ExtractCode(); ok {
		t.Fatal("Expected absent code")
	}
	if _, ok := page.SubmissionDetails(context.Background()); ok {
		t.Fatal("Expected absent submission")
	}
}

func TestPageWithoutProblemURL(t *testing.T) {
	page := parseTestPage(t, legacyPageHTML, "https://leetcode.com/submissions/", nil)
	if _, ok := page.ExtractProblemInfo(); ok {
		t.Fatal("Expected absent problem info")
	}
}
