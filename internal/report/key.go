package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/util"
)

// KeyTimeLayout is the timestamp format embedded in output keys.
const KeyTimeLayout = "20060102T150405Z"

// MaxSummaryRunes bounds Summary.
const MaxSummaryRunes = 300

// OutputKey derives the destination key from the source filename and the
// analysis time: <prefix><base>_<timestamp>[_<suffix>].md. Two reports for
// the same file in the same second share a key and the later write wins.
func OutputKey(prefix, filename string, analyzedAt time.Time, suffix string) (string, error) {
	const op = "report output key"
	if analyzedAt.IsZero() {
		return "", errkind.Newf(errkind.InvalidMetadata, op, "analysis timestamp is required")
	}
	base, err := util.SanitizeFileName(filename)
	if err != nil {
		return "", errkind.New(errkind.InvalidMetadata, op, fmt.Errorf("filename %q: %w", filename, err))
	}
	key := strings.TrimLeft(prefix, "/") + base + "_" + analyzedAt.UTC().Format(KeyTimeLayout)
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		key += "_" + suffix
	}
	return key + ".md", nil
}

var emphasisReplacer = strings.NewReplacer("**", "", "__", "", "`", "")

// Summary is the first prose paragraph of Code Purpose, flattened to one
// line and cut at MaxSummaryRunes. It is empty when the section is missing.
func (d Document) Summary() string {
	body := d.Section(CodePurpose)
	if body == "" || body == Placeholder {
		return ""
	}
	for _, para := range splitParagraphs(body) {
		first := strings.TrimSpace(strings.SplitN(para, "\n", 2)[0])
		if strings.HasPrefix(first, "#") || strings.HasPrefix(first, "```") || strings.HasPrefix(first, "~~~") {
			continue
		}
		text := emphasisReplacer.Replace(para)
		text = spacePattern.ReplaceAllString(strings.TrimSpace(text), " ")
		if text == "" {
			continue
		}
		return truncateRunes(text, MaxSummaryRunes)
	}
	return ""
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(s string) []string {
	return paragraphBreak.Split(s, -1)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
