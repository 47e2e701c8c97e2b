package topic

import "strings"

// Wildcard matches one or more characters of a topic
const Wildcard = "*"

// Pattern is a compiled subscription pattern. It is the literal segments between
// wildcards, matched by leftmost search.
type Pattern struct {
	raw      string
	segments []string // len(segments) == number of wildcards + 1
}

// Compile compiles a pattern. Every string is a valid pattern.
func Compile(pattern string) *Pattern {
	return &Pattern{
		raw:      pattern,
		segments: strings.Split(pattern, Wildcard),
	}
}

// String returns the pattern text
func (p *Pattern) String() string {
	return p.raw
}

// Literal reports whether the pattern contains no wildcard
func (p *Pattern) Literal() bool {
	return len(p.segments) == 1
}

// Match reports whether topic matches the pattern. A literal pattern only
// matches the identical string, each wildcard consumes at least one character.
func (p *Pattern) Match(topic string) bool {
	if p.Literal() {
		return topic == p.raw
	}

	prefix := p.segments[0]
	if !strings.HasPrefix(topic, prefix) {
		return false
	}
	pos := len(prefix)

	// middle segments, each preceded by a wildcard that takes at least one character
	last := len(p.segments) - 1
	for _, seg := range p.segments[1:last] {
		start := pos + 1
		if start > len(topic) {
			return false
		}
		idx := strings.Index(topic[start:], seg)
		if idx < 0 {
			return false
		}
		pos = start + idx + len(seg)
	}

	// the suffix must end the topic and leave at least one character for the last wildcard
	suffix := p.segments[last]
	return len(topic)-len(suffix) >= pos+1 && strings.HasSuffix(topic, suffix)
}
