// Package match filters instance identifiers with '*' wildcard lists.
package match

import "strings"

// Pattern is a compiled '*' wildcard matcher.
type Pattern struct {
	raw           string
	parts         []string
	anchoredStart bool
	anchoredEnd   bool
	matchAll      bool
}

// Compile compiles pattern into a reusable matcher.
// Params: pattern may contain '*' wildcards.
// Returns: compiled matcher and false when pattern is empty.
func Compile(pattern string) (Pattern, bool) {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return Pattern{}, false
	}
	if strings.Trim(p, "*") == "" {
		return Pattern{raw: p, matchAll: true}, true
	}

	return Pattern{
		raw:           p,
		parts:         strings.Split(p, "*"),
		anchoredStart: !strings.HasPrefix(p, "*"),
		anchoredEnd:   !strings.HasSuffix(p, "*"),
	}, true
}

// String returns the trimmed source pattern.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether value matches the pattern.
// Params: value is compared text.
// Returns: true on pattern match.
func (p Pattern) Match(value string) bool {
	if p.matchAll {
		return true
	}
	if len(p.parts) == 0 {
		return false
	}
	if len(p.parts) == 1 {
		return value == p.parts[0]
	}

	first, last := 0, len(p.parts)-1
	cursor, limit := 0, len(value)

	if p.anchoredStart {
		if !strings.HasPrefix(value, p.parts[first]) {
			return false
		}
		cursor = len(p.parts[first])
	}
	if p.anchoredEnd {
		tail := p.parts[last]
		if !strings.HasSuffix(value, tail) || len(value)-len(tail) < cursor {
			return false
		}
		limit = len(value) - len(tail)
	}

	for _, segment := range p.parts[first+1 : last] {
		if segment == "" {
			continue
		}
		offset := strings.Index(value[cursor:limit], segment)
		if offset < 0 {
			return false
		}
		cursor += offset + len(segment)
	}
	return true
}

// Filter keeps identifiers matching any include pattern and no exclude pattern.
// An empty include list keeps everything not excluded.
type Filter struct {
	include []Pattern
	exclude []Pattern
}

// NewFilter compiles include and exclude lists; blank entries are skipped.
// Params: include and exclude wildcard lists.
// Returns: filter ready for concurrent use.
func NewFilter(include, exclude []string) *Filter {
	return &Filter{
		include: compileAll(include),
		exclude: compileAll(exclude),
	}
}

// Allow reports whether value passes the filter. A nil filter allows everything.
// Params: value identifier.
// Returns: true when kept.
func (f *Filter) Allow(value string) bool {
	if f == nil {
		return true
	}
	for _, p := range f.exclude {
		if p.Match(value) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if p.Match(value) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) []Pattern {
	out := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		if p, ok := Compile(raw); ok {
			out = append(out, p)
		}
	}
	return out
}
