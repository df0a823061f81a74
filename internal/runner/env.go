package runner

import (
	"os"
	"strings"
)

// Credential variables never passed to generated code. Matching is
// case-insensitive.
var (
	secretEnvPrefixes = []string{
		"CODEXRUN_",
		"CODEX_",
		"OPENAI_API",
		"ANTHROPIC_API",
		"AWS_SECRET",
		"AWS_SESSION",
		"GITHUB_TOKEN",
		"GH_TOKEN",
	}
	secretEnvNames = map[string]bool{
		"API_KEY":    true,
		"API_SECRET": true,
		"SECRET_KEY": true,
	}
)

// ChildEnv returns the current environment without credential variables.
func ChildEnv() []string {
	return filterEnv(os.Environ())
}

func filterEnv(environ []string) []string {
	clean := make([]string, 0, len(environ))
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if ok && isSecretEnv(name) {
			continue
		}
		clean = append(clean, entry)
	}
	return clean
}

func isSecretEnv(name string) bool {
	upper := strings.ToUpper(name)
	if secretEnvNames[upper] {
		return true
	}
	for _, prefix := range secretEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
