package askwarren

import (
	"regexp"
	"strings"
)

// VerdictHeading introduces the final section of every analysis.
const VerdictHeading = "🔮 Urteil des Orakels von Omaha"

// UnknownVerdict is used when the analysis has no verdict section.
const UnknownVerdict = "Unbekannt"

var verdictRegexp = regexp.MustCompile(regexp.QuoteMeta(VerdictHeading) + `\s*([\s\S]*?)(?:\n|$)`)

// ExtractVerdict returns the first line following the verdict heading.
func ExtractVerdict(text string) string {
	m := verdictRegexp.FindStringSubmatch(text)
	if m == nil {
		return UnknownVerdict
	}
	v := strings.TrimSpace(m[1])
	if i := strings.IndexByte(v, '\n'); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return UnknownVerdict
	}
	return v
}

// VerdictIcon returns the leading symbol of a verdict, e.g. "✅".
func VerdictIcon(verdict string) string {
	icon, _, _ := strings.Cut(verdict, " ")
	return icon
}

// section markers are a digit followed by the keycap combining sequence, or the crystal ball.
var sectionMarker = regexp.MustCompile(`\d\x{FE0F}\x{20E3}|🔮`)

// SplitSections splits an analysis text before each numbered section marker
// ("1️⃣" .. "6️⃣") and before the verdict marker. Markers are kept.
func SplitSections(text string) []string {
	var sections []string
	start := 0
	for _, loc := range sectionMarker.FindAllStringIndex(text, -1) {
		if loc[0] > start {
			sections = append(sections, text[start:loc[0]])
		}
		start = loc[0]
	}
	if start < len(text) {
		sections = append(sections, text[start:])
	}
	return sections
}

// IsVerdictSection reports whether a section returned by SplitSections is the verdict.
func IsVerdictSection(section string) bool {
	return strings.HasPrefix(strings.TrimSpace(section), "🔮")
}

// CutSection separates a section returned by SplitSections into its title,
// without the marker, and its body. Text before the first marker has no title.
func CutSection(section string) (title, body string) {
	loc := sectionMarker.FindStringIndex(section)
	if loc == nil || loc[0] != 0 {
		return "", section
	}
	title, body, _ = strings.Cut(section[loc[1]:], "\n")
	return strings.TrimSpace(title), body
}
