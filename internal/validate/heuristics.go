package validate

import (
	"path"
	"strings"

	"github.com/samber/lo"
)

// minKeywordHits is the score a language needs before keyword density is trusted.
const minKeywordHits = 2

func (t *table) fromShebang(text string) (Language, bool) {
	if !strings.HasPrefix(text, "#!") {
		return "", false
	}
	line, _, _ := strings.Cut(text[2:], "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	interp := path.Base(fields[0])
	if interp == "env" {
		args := lo.Filter(fields[1:], func(f string, _ int) bool { return !strings.HasPrefix(f, "-") })
		if len(args) == 0 {
			return "", false
		}
		interp = path.Base(args[0])
	}
	lang, ok := t.byShebang[strings.ToLower(interp)]
	return lang, ok
}

// byKeywords scores candidates by keyword occurrences per kilobyte of text
// and returns the best one when it clears minKeywordHits. Ties go to the
// earlier candidate.
func (t *table) byKeywords(text string, candidates []Language) (Language, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	var (
		best      Language
		bestHits  int
		bestScore float64
	)
	kb := float64(len(text))/1024 + 1
	for _, lang := range candidates {
		hits := 0
		for _, kw := range t.keywords[lang] {
			hits += strings.Count(text, kw)
		}
		score := float64(hits) / kb
		if hits >= minKeywordHits && score > bestScore {
			best, bestHits, bestScore = lang, hits, score
		}
	}
	return best, bestHits > 0
}

func containsLanguage(list []Language, lang Language) bool {
	return lo.Contains(list, lang)
}
