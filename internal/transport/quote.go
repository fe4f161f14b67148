package transport

import "strings"

// ShellQuote escapes s for safe inclusion in a POSIX shell command
// line using single-quote escaping, the scheme spec.md §6 mandates for
// any argument that may carry user data (the same job pipes.quote did
// for the original Python callers in node.py and items/files.py).
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
