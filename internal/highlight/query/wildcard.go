package query

import "strings"

// IsWildcard reports whether s contains a '*' or '?' wildcard.
func IsWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// LiteralPrefix returns the part of pattern before its first wildcard.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// MatchWildcard reports whether term matches pattern, where '*' matches any
// run of characters and '?' exactly one.
func MatchWildcard(pattern, term string) bool {
	p, t := []rune(pattern), []rune(term)
	pi, ti := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ti
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
