// Package pathparam recognizes, substitutes and validates path parameter
// placeholders written in any of the supported notations.
package pathparam

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Notation is a single placeholder convention. Its pattern captures the
// parameter name in the "name" group; when a "token" group is present it
// delimits the placeholder text inside the match.
type Notation struct {
	Kind    string
	Pattern *regexp.Regexp
	Format  string

	nameIdx  int
	tokenIdx int
}

// Render writes a placeholder for name in this notation.
func (n Notation) Render(name string) string {
	return fmt.Sprintf(n.Format, name)
}

// NewNotation compiles a notation. It panics if the pattern has no name group.
func NewNotation(kind, pattern, format string) Notation {
	re := regexp.MustCompile(pattern)
	n := Notation{
		Kind:     kind,
		Pattern:  re,
		Format:   format,
		nameIdx:  re.SubexpIndex("name"),
		tokenIdx: re.SubexpIndex("token"),
	}
	if n.nameIdx < 0 {
		panic(fmt.Sprintf("pathparam: notation %q has no name group", kind))
	}
	return n
}

// Notations lists the recognized conventions, most specific first. A match
// overlapping one accepted earlier is dropped, so {{id}} is never also read
// as {id}.
var Notations = []Notation{
	NewNotation("double_curly", `\{\{(?P<name>[\w.-]+)\}\}`, "{{%s}}"),
	NewNotation("dollar_brace", `\$\{(?P<name>[\w.-]+)\}`, "${%s}"),
	NewNotation("curly", `\{(?P<name>[\w.-]+)\}`, "{%s}"),
	NewNotation("colon", `(?:^|/)(?P<token>:(?P<name>\w+))`, ":%s"),
	NewNotation("angle", `<(?P<name>\w+)>`, "<%s>"),
}

// Token is one placeholder occurrence inside a template.
type Token struct {
	Name     string
	Original string
	Offset   int
	Notation string
}

func (t Token) end() int {
	return t.Offset + len(t.Original)
}

// Extract returns every placeholder in template ordered by offset.
func Extract(template string) []Token {
	var tokens []Token

	for _, n := range Notations {
		for _, m := range n.Pattern.FindAllStringSubmatchIndex(template, -1) {
			start, end := m[0], m[1]
			if n.tokenIdx >= 0 && m[2*n.tokenIdx] >= 0 {
				start, end = m[2*n.tokenIdx], m[2*n.tokenIdx+1]
			}

			if overlaps(tokens, start, end) {
				continue
			}

			tokens = append(tokens, Token{
				Name:     template[m[2*n.nameIdx]:m[2*n.nameIdx+1]],
				Original: template[start:end],
				Offset:   start,
				Notation: n.Kind,
			})
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Offset < tokens[j].Offset
	})

	return tokens
}

func overlaps(tokens []Token, start, end int) bool {
	for _, t := range tokens {
		if start < t.end() && t.Offset < end {
			return true
		}
	}
	return false
}

// Names returns the distinct parameter names in template, in order of first
// appearance.
func Names(template string) []string {
	return distinct(Extract(template))
}

// Substitute replaces each placeholder whose name has a non-nil value in
// values. Placeholders without a value are left in place and their names are
// reported once each in missing.
func Substitute(template string, values map[string]any) (resolved string, missing []string) {
	tokens := Extract(template)
	if len(tokens) == 0 {
		return template, nil
	}

	var b strings.Builder
	var absent []Token
	last := 0

	for _, t := range tokens {
		b.WriteString(template[last:t.Offset])
		last = t.end()

		v, ok := values[t.Name]
		if !ok || v == nil {
			b.WriteString(t.Original)
			absent = append(absent, t)
			continue
		}
		b.WriteString(FormatValue(v))
	}
	b.WriteString(template[last:])

	return b.String(), distinct(absent)
}

// Validate reports whether path is free of placeholders, and the names of
// any that remain.
func Validate(path string) (bool, []string) {
	remaining := Names(path)
	return len(remaining) == 0, remaining
}

// FormatValue renders a parameter value the way it appears on the wire.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func distinct(tokens []Token) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tokens))
	var names []string
	for _, t := range tokens {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	return names
}
