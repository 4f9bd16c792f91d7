package leetcode

import "strings"

// extensions contains mapping from canonical language name to file
// extension of solution file.
var extensions = map[string]string{
	"c":          ".c",
	"c#":         ".cs",
	"c++":        ".cpp",
	"cpp":        ".cpp",
	"csharp":     ".cs",
	"dart":       ".dart",
	"elixir":     ".ex",
	"erlang":     ".erl",
	"go":         ".go",
	"golang":     ".go",
	"java":       ".java",
	"javascript": ".js",
	"kotlin":     ".kt",
	"mssql":      ".sql",
	"mysql":      ".sql",
	"oraclesql":  ".sql",
	"php":        ".php",
	"python":     ".py",
	"python3":    ".py",
	"racket":     ".rkt",
	"ruby":       ".rb",
	"rust":       ".rs",
	"scala":      ".scala",
	"swift":      ".swift",
	"typescript": ".ts",
}

// Extension returns solution file extension for language.
//
// Unknown languages fall back to generic text extension.
func Extension(language string) string {
	key := strings.ToLower(strings.TrimSpace(language))
	if ext, ok := extensions[key]; ok {
		return ext
	}
	return ".txt"
}
