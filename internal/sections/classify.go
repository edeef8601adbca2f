// Package sections splits generated résumé text into named sections.
package sections

import (
	"regexp"
	"strings"
)

const (
	About          = "About"
	Skills         = "Skills"
	Experience     = "Experience"
	Education      = "Education"
	Projects       = "Projects"
	Certifications = "Certifications"
	Achievements   = "Achievements"
)

// Default lists the canonical section names in résumé order.
var Default = []string{About, Skills, Experience, Education, Projects, Certifications, Achievements}

type Kind int

const (
	Content Kind = iota
	Header
	UnknownHeader
	Blank
)

func (k Kind) String() string {
	switch k {
	case Header:
		return "header"
	case UnknownHeader:
		return "unknown-header"
	case Blank:
		return "blank"
	default:
		return "content"
	}
}

// Line is a classified input line. Name is the canonical section name for
// Header lines and the cleaned text for Content lines.
type Line struct {
	Kind Kind
	Name string
	Text string
}

var (
	boldHeader     = regexp.MustCompile(`^(?:#{1,6}\s*)?(?:\*\*|__)(.+?)(?:\*\*|__)`)
	markdownHeader = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
)

// Classify tags a single line against the known section names. Matching
// is case-insensitive; the canonical spelling from known is returned.
func Classify(line string, known []string) Line {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Line{Kind: Blank}
	}

	if inner, ok := headerText(trimmed); ok {
		for _, name := range known {
			if strings.EqualFold(inner, name) {
				return Line{Kind: Header, Name: name}
			}
		}
		// A bold run followed by more text is emphasis inside content.
		if isWholeHeader(trimmed) {
			return Line{Kind: UnknownHeader, Text: inner}
		}
	}

	content := stripBullet(trimmed)
	if content == "" {
		return Line{Kind: Blank}
	}
	return Line{Kind: Content, Text: content}
}

func headerText(line string) (string, bool) {
	if m := boldHeader.FindStringSubmatch(line); m != nil {
		return cleanHeader(m[1]), true
	}
	if m := markdownHeader.FindStringSubmatch(line); m != nil {
		return cleanHeader(m[1]), true
	}
	return "", false
}

func cleanHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.TrimSpace(s)
}

// isWholeHeader reports whether nothing but an optional colon follows the
// header markup.
func isWholeHeader(line string) bool {
	if markdownHeader.MatchString(line) && !boldHeader.MatchString(line) {
		return true
	}
	loc := boldHeader.FindStringIndex(line)
	if loc == nil {
		return false
	}
	rest := strings.TrimSpace(line[loc[1]:])
	return rest == "" || rest == ":"
}

// stripBullet removes leading bullet markers and surrounding whitespace.
func stripBullet(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, "•-*+·– \t"))
}
