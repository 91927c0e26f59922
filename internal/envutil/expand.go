package envutil

import (
	"os"
	"regexp"
	"strings"
)

// percentVar matches Windows-style %NAME% references.
var percentVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// ExpandWindowsEnv resolves environment variables in s. Both the Windows
// %VAR% form and the Unix $VAR / ${VAR} forms are understood. Unknown
// %VAR% references are left untouched so a typo stays visible in the
// resulting path instead of silently collapsing to an empty segment.
func ExpandWindowsEnv(s string) string {
	return ExpandWith(s, os.LookupEnv)
}

// ExpandWith is ExpandWindowsEnv with a caller-supplied lookup.
func ExpandWith(s string, lookup func(string) (string, bool)) string {
	if s == "" {
		return s
	}

	s = percentVar.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := lookupFold(name, lookup); ok {
			return v
		}
		return m
	})

	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(name string) string {
		v, _ := lookupFold(name, lookup)
		return v
	})
}

// lookupFold tries the name as given, then upper-cased, since Windows
// environment names are case-insensitive.
func lookupFold(name string, lookup func(string) (string, bool)) (string, bool) {
	if v, ok := lookup(name); ok {
		return v, true
	}
	if up := strings.ToUpper(name); up != name {
		return lookup(up)
	}
	return "", false
}
