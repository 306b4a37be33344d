package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// ExpandEnv replaces every ${env.KEY} in value with the environment variable
// KEY, or "" when unset. Malformed expressions are kept as is.
func ExpandEnv(value string) string {
	return expandEnvExpr(value, os.Getenv)
}

func expandEnvExpr(value string, lookup func(key string) string) string {
	if !strings.Contains(value, envPrefix) {
		return value
	}
	var b strings.Builder
	for {
		start := strings.Index(value, envPrefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		key := rest[:end]
		if !isEnvKey(key) {
			// keep the prefix and rescan what follows it
			b.WriteString(envPrefix)
			value = rest
			continue
		}
		b.WriteString(lookup(key))
		value = rest[end+1:]
	}
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
