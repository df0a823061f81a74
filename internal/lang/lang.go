// Package lang maps language names to file extensions and interpreter
// commands. Lookups are case-insensitive and total.
package lang

import (
	"maps"
	"slices"
	"strings"
)

const (
	// FallbackExtension is used for languages missing from the table.
	FallbackExtension = "txt"
	// FallbackCommand is used for languages without an interpreter.
	FallbackCommand = "echo"
)

var extensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"c++":        "cpp",
	"go":         "go",
	"rust":       "rs",
	"typescript": "ts",
	"html":       "html",
	"css":        "css",
	"sql":        "sql",
	"bash":       "sh",
	"shell":      "sh",
}

var commands = map[string]string{
	"python":     "python3",
	"javascript": "node",
	"bash":       "bash",
	"shell":      "bash",
}

// Normalize lower-cases and trims a language name.
func Normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// Extension returns the file extension for language, without the dot.
func Extension(language string) string {
	if ext, ok := extensions[Normalize(language)]; ok {
		return ext
	}
	return FallbackExtension
}

// Command returns the interpreter used to run a file of this language.
func Command(language string) string {
	if c, ok := commands[Normalize(language)]; ok {
		return c
	}
	return FallbackCommand
}

// Executable reports whether generated files of this language are run.
func Executable(language string) bool {
	_, ok := commands[Normalize(language)]
	return ok
}

// Filename returns the name generated code is saved under.
func Filename(language string) string {
	return "generated_code." + Extension(language)
}

// Known returns every language with a dedicated extension, sorted.
func Known() []string {
	return slices.Sorted(maps.Keys(extensions))
}
