// Package leetcode provides extraction of accepted submissions from
// LeetCode pages and GraphQL API.
package leetcode

import (
	"fmt"
	"strings"

	"github.com/leetsync/leetsync/internal/pkg/hash"
)

// Difficulty levels of problems.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// minCodeLength is minimal amount of characters in meaningful solution.
const minCodeLength = 10

// ProblemInfo represents basic problem metadata extracted from page.
type ProblemInfo struct {
	ID         string
	Title      string
	TitleSlug  string
	Difficulty string
}

// Submission represents one accepted solution.
type Submission struct {
	ID                string   `json:"id"`
	QuestionID        string   `json:"question_id,omitempty"`
	Title             string   `json:"title"`
	TitleSlug         string   `json:"title_slug"`
	Difficulty        string   `json:"difficulty"`
	Tags              []string `json:"tags,omitempty"`
	Language          string   `json:"language"`
	Code              string   `json:"code"`
	Runtime           string   `json:"runtime"`
	Memory            string   `json:"memory"`
	Timestamp         string   `json:"timestamp"`
	Link              string   `json:"link"`
	RuntimePercentile float64  `json:"runtime_percentile,omitempty"`
	MemoryPercentile  float64  `json:"memory_percentile,omitempty"`
	FileExtension     string   `json:"file_extension,omitempty"`
}

// Validate checks that submission contains all required fields.
func (s Submission) Validate() error {
	if len(strings.TrimSpace(s.Title)) == 0 {
		return fmt.Errorf("submission has empty title")
	}
	if len(strings.TrimSpace(s.TitleSlug)) == 0 {
		return fmt.Errorf("submission has empty title slug")
	}
	if len(strings.TrimSpace(s.Language)) == 0 {
		return fmt.Errorf("submission has empty language")
	}
	if len(strings.TrimSpace(s.Code)) <= minCodeLength {
		return fmt.Errorf("submission code is too short")
	}
	return nil
}

// Fingerprint returns deterministic dedup key of submission.
func (s Submission) Fingerprint() string {
	return hash.Fingerprint(s.TitleSlug, s.Language, s.Code)
}

// normalize fills optional fields with default values.
func (s *Submission) normalize() {
	if len(s.Runtime) == 0 {
		s.Runtime = "N/A"
	}
	if len(s.Memory) == 0 {
		s.Memory = "N/A"
	}
	if len(s.Difficulty) == 0 {
		s.Difficulty = DifficultyEasy
	}
	if len(s.Link) == 0 && len(s.TitleSlug) > 0 {
		s.Link = "https://leetcode.com/problems/" + s.TitleSlug + "/"
	}
	if len(s.FileExtension) == 0 {
		s.FileExtension = Extension(s.Language)
	}
}
