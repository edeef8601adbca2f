package sections

import (
	"encoding/json"
	"strings"
)

// Map holds section lines keyed by canonical name. It always has an entry
// for every name it was built with.
type Map struct {
	order []string
	lines map[string][]string
}

// Extract scans raw top to bottom. A recognised header opens its section;
// content lines go to the open section; lines before the first recognised
// header are dropped. Unknown headers leave the open section unchanged.
func Extract(raw string, known []string) *Map {
	m := newMap(known)

	current := ""
	for _, text := range strings.Split(raw, "\n") {
		line := Classify(strings.TrimSuffix(text, "\r"), known)
		switch line.Kind {
		case Header:
			current = line.Name
		case Content:
			if current != "" {
				m.lines[current] = append(m.lines[current], line.Text)
			}
		}
	}

	return m
}

func newMap(known []string) *Map {
	m := &Map{lines: make(map[string][]string, len(known))}
	for _, name := range known {
		if _, ok := m.lines[name]; ok {
			continue
		}
		m.order = append(m.order, name)
		m.lines[name] = []string{}
	}
	return m
}

// Get returns the lines of a section. Lookup is case-insensitive.
func (m *Map) Get(name string) []string {
	for _, known := range m.order {
		if strings.EqualFold(known, name) {
			return m.lines[known]
		}
	}
	return []string{}
}

// First returns the first line of a section or "".
func (m *Map) First(name string) string {
	lines := m.Get(name)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func (m *Map) Names() []string {
	return append([]string(nil), m.order...)
}

// ToMap returns a copy keyed by lower-cased section name.
func (m *Map) ToMap() map[string][]string {
	out := make(map[string][]string, len(m.order))
	for _, name := range m.order {
		out[strings.ToLower(name)] = append([]string{}, m.lines[name]...)
	}
	return out
}

// IsEmpty reports whether no section received content.
func (m *Map) IsEmpty() bool {
	for _, lines := range m.lines {
		if len(lines) > 0 {
			return false
		}
	}
	return true
}

// Text renders the sections as plain text for embedding. Empty sections
// are left out.
func (m *Map) Text() string {
	var b strings.Builder
	for _, name := range m.order {
		lines := m.lines[name]
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(name)
		b.WriteString(":")
		for _, line := range lines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}

// MarshalJSON encodes the lower-cased map.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}
