// Package producer turns a requirements string into source code text.
package producer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Producer generates code for a language from a requirements string.
// An empty result means generation failed.
type Producer interface {
	Produce(ctx context.Context, language, requirements string) (string, error)
}

// Func adapts a plain function to Producer.
type Func func(ctx context.Context, language, requirements string) (string, error)

// Produce calls f.
func (f Func) Produce(ctx context.Context, language, requirements string) (string, error) {
	return f(ctx, language, requirements)
}

// BuildPrompt renders the prompt a generation backend receives.
func BuildPrompt(language, requirements string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %s code that meets the following requirements:\n\n", language)
	fmt.Fprintf(&b, "%s\n\n", requirements)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- The code must be executable and follow %s syntax rules\n", language)
	b.WriteString("- Include proper error handling\n")
	b.WriteString("- Add comments where necessary\n")
	b.WriteString("- The code should be well-structured and maintainable\n\n")
	b.WriteString("Please provide only the code without any additional explanation:")
	return strings.TrimSpace(b.String())
}

// Preview truncates a prompt to at most n bytes for logging, never
// splitting a multi-byte character.
func Preview(prompt string, n int) string {
	if len(prompt) <= n {
		return prompt
	}
	for n > 0 && !utf8.RuneStart(prompt[n]) {
		n--
	}
	return prompt[:n] + "..."
}
