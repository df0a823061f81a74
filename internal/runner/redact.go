package runner

import "regexp"

const redactPlaceholder = "[REDACTED]"

// secretPatterns match credential values in program output.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.]{20,}`),
	regexp.MustCompile(`gh[po]_[a-zA-Z0-9]{36,}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// envAssignPattern matches NAME=value assignments of credential variables,
// as printed by env, set or export -p. Group 1 is everything up to and
// including the '='.
var envAssignPattern = regexp.MustCompile(
	`(?im)^((?:declare -x |export )?` +
		`(?:CODEXRUN_\w*|CODEX_\w*|OPENAI_\w*|ANTHROPIC_\w*|API_KEY|API_SECRET|SECRET_KEY|AWS_SECRET\w*|GITHUB_TOKEN|GH_TOKEN)=)` +
		`.+$`,
)

// Redact replaces credentials in s with a placeholder and returns the
// number of replacements. Only the secret is replaced; the surrounding
// text and line structure are kept.
func Redact(s string) (string, int) {
	if s == "" {
		return s, 0
	}
	count := 0
	// assignments first so a value matching a key shape is counted once
	if n := len(envAssignPattern.FindAllStringIndex(s, -1)); n > 0 {
		count += n
		s = envAssignPattern.ReplaceAllString(s, "${1}"+redactPlaceholder)
	}
	for _, re := range secretPatterns {
		if n := len(re.FindAllStringIndex(s, -1)); n > 0 {
			count += n
			s = re.ReplaceAllString(s, redactPlaceholder)
		}
	}
	return s, count
}
