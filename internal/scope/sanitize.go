package scope

import "strings"

var identReplacer = strings.NewReplacer("/", "_", ":", "_", ".", "_")

// Sanitize converts a graph value name into an identifier by replacing the
// separators '/', ':' and '.' with '_'. No other characters are touched and
// distinct inputs may collide; callers must keep sanitized names unique.
func Sanitize(raw string) string {
	return identReplacer.Replace(raw)
}
