package managers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/valyala/fasttemplate"
	"golang.org/x/exp/slices"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/github"
	"github.com/leetsync/leetsync/internal/leetcode"
	"github.com/leetsync/leetsync/internal/models"
)

const (
	pathTemplateKey    = "commit.path_template"
	messageTemplateKey = "commit.message_template"
)

const (
	defaultPathTemplate    = "{{difficulty}}/{{id}}-{{slug}}"
	defaultMessageTemplate = "AC {{id}}. {{title}} [{{difficulty}}] ({{language}})"
)

const (
	readmeBeginMarker = "<!-- leetsync:begin -->"
	readmeEndMarker   = "<!-- leetsync:end -->"
)

// CommitFile represents single file of commit plan.
type CommitFile struct {
	Path    string
	Content []byte
}

// CommitPlan represents set of files representing one solution.
type CommitPlan struct {
	Dir     string
	Message string
	Files   []CommitFile
}

// ReadmeEntry represents one solution row of aggregate readme.
type ReadmeEntry struct {
	ID         string
	Title      string
	Slug       string
	Difficulty string
	Language   string
	Timestamp  string
	Dir        string
}

// CommitManager assembles commit content for accepted submissions.
type CommitManager struct {
	settings *models.SettingStore
}

// NewCommitManager returns new manager for commit assembly.
func NewCommitManager(c *core.Core) *CommitManager {
	return &CommitManager{settings: c.Settings}
}

// Plan returns solution directory, commit message and files to commit.
func (m *CommitManager) Plan(submission leetcode.Submission) (CommitPlan, error) {
	if err := submission.Validate(); err != nil {
		return CommitPlan{}, err
	}
	values := templateValues(submission)
	dir := renderTemplate(m.settingValue(pathTemplateKey, defaultPathTemplate), values)
	if len(dir) == 0 {
		return CommitPlan{}, fmt.Errorf("empty solution directory")
	}
	plan := CommitPlan{
		Dir: dir,
		Message: renderTemplate(
			m.settingValue(messageTemplateKey, defaultMessageTemplate), values,
		),
	}
	code := submission.Code
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	extension := submission.FileExtension
	if len(extension) == 0 {
		extension = leetcode.Extension(submission.Language)
	}
	plan.Files = append(plan.Files, CommitFile{
		Path:    dir + "/solution" + extension,
		Content: []byte(code),
	})
	plan.Files = append(plan.Files, CommitFile{
		Path:    dir + "/README.md",
		Content: problemReadme(submission),
	})
	return plan, nil
}

// Entry returns aggregate readme row for submission.
func (m *CommitManager) Entry(submission leetcode.Submission, dir string) ReadmeEntry {
	return ReadmeEntry{
		ID:         submission.QuestionID,
		Title:      submission.Title,
		Slug:       submission.TitleSlug,
		Difficulty: submission.Difficulty,
		Language:   submission.Language,
		Timestamp:  submission.Timestamp,
		Dir:        dir,
	}
}

// ScanEntries collects solution entries stored in repository.
//
// Solution folders are discovered up to two levels deep and described
// by front matter of their readme files.
func (m *CommitManager) ScanEntries(
	ctx context.Context, client *github.Client, owner, name, branch string,
) ([]ReadmeEntry, error) {
	var entries []ReadmeEntry
	root, err := client.ListContents(ctx, owner, name, "", branch)
	if err != nil {
		return nil, err
	}
	for _, rootEntry := range root {
		if rootEntry.Type != "dir" {
			continue
		}
		entry, ok, err := m.scanFolder(ctx, client, owner, name, branch, rootEntry.Path)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
			continue
		}
		children, err := client.ListContents(ctx, owner, name, rootEntry.Path, branch)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.Type != "dir" {
				continue
			}
			entry, ok, err := m.scanFolder(ctx, client, owner, name, branch, child.Path)
			if err != nil {
				return nil, err
			}
			if ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

func (m *CommitManager) scanFolder(
	ctx context.Context, client *github.Client, owner, name, branch, dir string,
) (ReadmeEntry, bool, error) {
	file, err := client.GetFile(ctx, owner, name, dir+"/README.md", branch)
	if err != nil {
		return ReadmeEntry{}, false, err
	}
	if file == nil {
		return ReadmeEntry{}, false, nil
	}
	data, err := file.Decode()
	if err != nil {
		return ReadmeEntry{}, false, err
	}
	entry, ok := parseFrontMatter(data)
	entry.Dir = dir
	return entry, ok, nil
}

// MergeEntry replaces entry with same slug or appends new one.
func MergeEntry(entries []ReadmeEntry, entry ReadmeEntry) []ReadmeEntry {
	for i := range entries {
		if entries[i].Slug == entry.Slug {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

// BuildRootReadme renders aggregate readme from solution entries.
//
// Content between markers is fully rebuilt, everything else in the
// existing readme is preserved. Missing readme gets a skeleton.
func BuildRootReadme(existing []byte, entries []ReadmeEntry) []byte {
	if len(bytes.TrimSpace(existing)) == 0 {
		existing = []byte("# LeetCode Solutions\n" +
			"\n" +
			"Synchronized automatically by leetsync.\n" +
			"\n" +
			readmeBeginMarker + "\n" +
			readmeEndMarker + "\n")
	}
	content := string(existing)
	begin := strings.Index(content, readmeBeginMarker)
	end := strings.Index(content, readmeEndMarker)
	if begin < 0 || end < 0 || end < begin {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n" + readmeBeginMarker + "\n" + readmeEndMarker + "\n"
		begin = strings.Index(content, readmeBeginMarker)
		end = strings.Index(content, readmeEndMarker)
	}
	var generated strings.Builder
	generated.WriteString(readmeBeginMarker)
	generated.WriteString("\n\n")
	writeStatsTable(&generated, entries)
	writeLatestList(&generated, entries)
	writeSolutionsTable(&generated, entries)
	return []byte(content[:begin] + generated.String() + content[end:])
}

func writeStatsTable(w *strings.Builder, entries []ReadmeEntry) {
	counts := map[string]int{}
	for _, entry := range entries {
		counts[strings.ToLower(entry.Difficulty)]++
	}
	w.WriteString("## Progress\n\n")
	w.WriteString("| Easy | Medium | Hard | Total |\n")
	w.WriteString("| ---- | ------ | ---- | ----- |\n")
	fmt.Fprintf(
		w, "| %d | %d | %d | %d |\n\n",
		counts["easy"], counts["medium"], counts["hard"], len(entries),
	)
}

func writeLatestList(w *strings.Builder, entries []ReadmeEntry) {
	if len(entries) == 0 {
		return
	}
	latest := slices.Clone(entries)
	slices.SortFunc(latest, func(a, b ReadmeEntry) bool {
		return a.Timestamp > b.Timestamp
	})
	if len(latest) > 10 {
		latest = latest[:10]
	}
	w.WriteString("## Latest\n\n")
	for _, entry := range latest {
		fmt.Fprintf(
			w, "- [%s](%s) (%s)\n",
			entry.Title, entry.Dir, strings.ToLower(entry.Language),
		)
	}
	w.WriteString("\n")
}

func writeSolutionsTable(w *strings.Builder, entries []ReadmeEntry) {
	if len(entries) == 0 {
		return
	}
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b ReadmeEntry) bool {
		aID, aErr := strconv.Atoi(a.ID)
		bID, bErr := strconv.Atoi(b.ID)
		if aErr == nil && bErr == nil && aID != bID {
			return aID < bID
		}
		if (aErr == nil) != (bErr == nil) {
			return aErr == nil
		}
		return a.Slug < b.Slug
	})
	w.WriteString("## Solutions\n\n")
	w.WriteString("| # | Title | Difficulty | Language |\n")
	w.WriteString("| - | ----- | ---------- | -------- |\n")
	for _, entry := range sorted {
		fmt.Fprintf(
			w, "| %s | [%s](%s) | %s | %s |\n",
			entry.ID, entry.Title, entry.Dir,
			entry.Difficulty, strings.ToLower(entry.Language),
		)
	}
}

func (m *CommitManager) settingValue(key, fallback string) string {
	setting, err := m.settings.GetByKey(key)
	if err != nil || len(setting.Value) == 0 {
		return fallback
	}
	return setting.Value
}

func templateValues(submission leetcode.Submission) map[string]any {
	return map[string]any{
		"id":         PadID(submission.QuestionID),
		"slug":       SanitizeSlug(submission.TitleSlug),
		"title":      submission.Title,
		"difficulty": strings.ToLower(submission.Difficulty),
		"language":   strings.ToLower(strings.TrimSpace(submission.Language)),
	}
}

func renderTemplate(template string, values map[string]any) string {
	return fasttemplate.ExecuteString(template, "{{", "}}", values)
}

// PadID returns zero-padded numeric problem ID.
func PadID(id string) string {
	value, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		value = 0
	}
	return fmt.Sprintf("%04d", value)
}

// SanitizeSlug returns path-safe form of problem slug.
func SanitizeSlug(slug string) string {
	normalize := transform.Chain(
		norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC,
	)
	if value, _, err := transform.String(normalize, slug); err == nil {
		slug = value
	}
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(slug) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

func problemReadme(submission leetcode.Submission) []byte {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "id: %s\n", submission.QuestionID)
	fmt.Fprintf(&sb, "title: %s\n", submission.Title)
	fmt.Fprintf(&sb, "slug: %s\n", submission.TitleSlug)
	fmt.Fprintf(&sb, "difficulty: %s\n", submission.Difficulty)
	fmt.Fprintf(&sb, "language: %s\n", submission.Language)
	fmt.Fprintf(&sb, "runtime: %s\n", submission.Runtime)
	fmt.Fprintf(&sb, "memory: %s\n", submission.Memory)
	if submission.RuntimePercentile > 0 {
		fmt.Fprintf(&sb, "runtime_percentile: %.2f\n", submission.RuntimePercentile)
	}
	if submission.MemoryPercentile > 0 {
		fmt.Fprintf(&sb, "memory_percentile: %.2f\n", submission.MemoryPercentile)
	}
	if len(submission.Link) > 0 {
		fmt.Fprintf(&sb, "link: %s\n", submission.Link)
	}
	if len(submission.Tags) > 0 {
		fmt.Fprintf(&sb, "tags: %s\n", strings.Join(submission.Tags, ", "))
	}
	fmt.Fprintf(&sb, "timestamp: %s\n", submission.Timestamp)
	sb.WriteString("---\n\n")
	title := submission.Title
	if len(submission.QuestionID) > 0 {
		title = submission.QuestionID + ". " + title
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Difficulty: %s\n", submission.Difficulty)
	fmt.Fprintf(&sb, "- Language: %s\n", submission.Language)
	fmt.Fprintf(&sb, "- Runtime: %s\n", submission.Runtime)
	fmt.Fprintf(&sb, "- Memory: %s\n", submission.Memory)
	if len(submission.Link) > 0 {
		fmt.Fprintf(&sb, "\n[Problem](%s)\n", submission.Link)
	}
	return []byte(sb.String())
}

func parseFrontMatter(data []byte) (ReadmeEntry, bool) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return ReadmeEntry{}, false
	}
	entry := ReadmeEntry{}
	closed := false
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "id":
			entry.ID = value
		case "title":
			entry.Title = value
		case "slug":
			entry.Slug = value
		case "difficulty":
			entry.Difficulty = value
		case "language":
			entry.Language = value
		case "timestamp":
			entry.Timestamp = value
		}
	}
	return entry, closed && len(entry.Slug) > 0
}
