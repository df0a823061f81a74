package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/codexrun/internal/lang"
)

// Template produces placeholder programs from fixed per-language
// templates. Output depends only on language and requirements.
type Template struct {
	logger *slog.Logger
}

// NewTemplate creates a template producer. A nil logger uses slog.Default.
func NewTemplate(logger *slog.Logger) *Template {
	if logger == nil {
		logger = slog.Default()
	}
	return &Template{logger: logger}
}

// Produce renders the template for language.
func (t *Template) Produce(ctx context.Context, language, requirements string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt := BuildPrompt(language, requirements)
	t.logger.Debug("generating code", "language", language, "prompt", Preview(prompt, 100))

	switch lang.Normalize(language) {
	case "python":
		return fmt.Sprintf(pythonTemplate, requirements), nil
	case "javascript":
		return fmt.Sprintf(javascriptTemplate, requirements), nil
	case "bash", "shell":
		return fmt.Sprintf(shellTemplate, requirements), nil
	default:
		return fmt.Sprintf(genericTemplate, requirements, language), nil
	}
}

const pythonTemplate = `
# Generated code for: %s

def main():
    """
    Main function to execute the generated code
    """
    try:
        print("Executing generated code...")
        return True
    except Exception as e:
        print(f"Error executing code: {e}")
        return False

if __name__ == "__main__":
    main()
`

const javascriptTemplate = `
// Generated code for: %s

function main() {
    try {
        console.log("Executing generated code...");
        return true;
    } catch (error) {
        console.error("Error executing code:", error);
        return false;
    }
}

main();
`

const shellTemplate = `#!/usr/bin/env bash
# Generated code for: %s

set -euo pipefail

main() {
    echo "Executing generated code..."
}

main "$@"
`

const genericTemplate = `
// Generated code for: %s
// Language: %s

console.log("Executing generated code...");
`
