package pipeline

import "regexp"

// identifierRe matches a CNPJ-shaped token: 14 digits, optionally laid out as
// 00.000.000/0000-00 with each separator independently optional. The outer
// groups stand in for \b with Unicode word characters, so a 14-digit run
// inside a longer number or word never matches.
var identifierRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2})(?:[^\p{L}\p{N}_]|$)`)

// ExtractIdentifier returns the leftmost identifier in text exactly as it
// appears, or "" when there is none.
func ExtractIdentifier(text string) string {
	m := identifierRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
