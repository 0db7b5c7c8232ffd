package report

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	headingPattern   = regexp.MustCompile(`^(#{1,6})\s+(.+?)(?:\s+#+)?$`)
	boldLinePattern  = regexp.MustCompile(`^(?:\*\*|__)(.+?)(?:\*\*|__):?$`)
	numberingPattern = regexp.MustCompile(`^(?:\d+|[ivx]+|[a-e])[.)]\s+`)
	parenPattern     = regexp.MustCompile(`\s*\([^)]*\)$`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

var sectionAliases = map[string]Section{
	"code purpose":                      CodePurpose,
	"purpose":                           CodePurpose,
	"purpose of the code":               CodePurpose,
	"overview":                          CodePurpose,
	"code overview":                     CodePurpose,
	"summary":                           CodePurpose,
	"main components":                   MainComponents,
	"components":                        MainComponents,
	"key components":                    MainComponents,
	"main functions and classes":        MainComponents,
	"functions and classes":             MainComponents,
	"data structures":                   DataStructures,
	"data structures used":              DataStructures,
	"key data structures":               DataStructures,
	"data model":                        DataStructures,
	"dependencies":                      Dependencies,
	"external dependencies":             Dependencies,
	"dependencies and imports":          Dependencies,
	"imports":                           Dependencies,
	"architectural patterns":            ArchitecturalPatterns,
	"architecture":                      ArchitecturalPatterns,
	"design patterns":                   ArchitecturalPatterns,
	"architecture and patterns":         ArchitecturalPatterns,
	"architectural and design patterns": ArchitecturalPatterns,
	"patterns":                          ArchitecturalPatterns,
}

// normalizeTitle lowercases a heading and strips numbering, emphasis,
// trailing colons and a trailing parenthetical.
func normalizeTitle(raw string) string {
	t := strings.TrimSpace(raw)
	t = strings.NewReplacer("**", "", "__", "", "`", "").Replace(t)
	t = strings.ToLower(strings.TrimSpace(t))
	t = numberingPattern.ReplaceAllString(t, "")
	t = strings.TrimRight(t, ": ")
	t = parenPattern.ReplaceAllString(t, "")
	return spacePattern.ReplaceAllString(strings.TrimSpace(t), " ")
}

func lookupSection(title string) (Section, bool) {
	s, ok := sectionAliases[normalizeTitle(title)]
	return s, ok
}

// parseHeading recognises ATX headings and whole-line bold labels. Bold
// labels count as level 3 headings.
func parseHeading(line string) (level int, title string, ok bool) {
	if m := headingPattern.FindStringSubmatch(line); m != nil {
		return len(m[1]), strings.TrimSpace(m[2]), true
	}
	if m := boldLinePattern.FindStringSubmatch(line); m != nil {
		return 3, strings.TrimSpace(m[1]), true
	}
	return 0, "", false
}

func isFence(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```", true
	case strings.HasPrefix(line, "~~~"):
		return "~~~", true
	}
	return "", false
}

// splitSections assigns the model's lines to the five sections. Text before
// the first recognised heading belongs to Code Purpose. Repeated sections
// are concatenated in order of appearance. Headings that are not section
// headings are demoted to level 3 so the five stay the only level 2
// headings in the document.
func splitSections(text string) [5]string {
	var chunks [5][]string
	var preamble []string
	started := false
	current := CodePurpose
	var buf []string

	flush := func() {
		if started {
			chunks[current] = append(chunks[current], joinTrimmed(buf))
		} else {
			preamble = buf
		}
		buf = nil
	}

	fence := ""
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			buf = append(buf, line)
			continue
		}
		if marker, ok := isFence(trimmed); ok {
			fence = marker
			buf = append(buf, line)
			continue
		}

		if level, title, ok := parseHeading(trimmed); ok {
			if sec, known := lookupSection(title); known && level <= 3 {
				flush()
				started = true
				current = sec
				continue
			}
			if !started && level == 1 && normalizeTitle(title) == strings.ToLower(Title) {
				continue
			}
			if level < 3 && strings.HasPrefix(trimmed, "#") {
				line = "### " + title
			}
		}
		buf = append(buf, line)
	}
	flush()

	if p := joinTrimmed(preamble); p != "" {
		chunks[CodePurpose] = append([]string{p}, chunks[CodePurpose]...)
	}

	var out [5]string
	for _, s := range Sections {
		parts := lo.Filter(chunks[s], func(c string, _ int) bool { return c != "" })
		if len(parts) == 0 {
			out[s] = Placeholder
			continue
		}
		out[s] = strings.Join(parts, "\n\n")
	}
	return out
}

// joinTrimmed joins lines and drops leading and trailing blank lines.
func joinTrimmed(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
