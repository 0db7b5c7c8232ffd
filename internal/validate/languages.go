package validate

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Language is a detected source language tag. It is never empty.
type Language string

// Unknown is returned when neither the filename nor the content identifies a language.
const Unknown Language = "unknown"

//go:embed languages.yaml
var languagesYAML []byte

type languageSpec struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
	Shebangs   []string `yaml:"shebangs"`
	Keywords   []string `yaml:"keywords"`
}

type languageFile struct {
	Languages []languageSpec      `yaml:"languages"`
	Ambiguous map[string][]string `yaml:"ambiguous"`
}

// table is the parsed, indexed form of languages.yaml.
type table struct {
	byExt      map[string]Language
	byFilename map[string]Language
	byShebang  map[string]Language
	ambiguous  map[string][]Language
	keywords   map[Language][]string
	ordered    []Language
}

var loadTable = sync.OnceValues(func() (*table, error) {
	return parseTable(languagesYAML)
})

func parseTable(raw []byte) (*table, error) {
	var file languageFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse languages table: %w", err)
	}

	t := &table{
		byExt:      map[string]Language{},
		byFilename: map[string]Language{},
		byShebang:  map[string]Language{},
		ambiguous:  map[string][]Language{},
		keywords:   map[Language][]string{},
	}
	for _, spec := range file.Languages {
		lang := Language(strings.ToLower(strings.TrimSpace(spec.Name)))
		if lang == "" {
			return nil, fmt.Errorf("parse languages table: language with empty name")
		}
		t.ordered = append(t.ordered, lang)
		for _, ext := range spec.Extensions {
			ext = normalizeExt(ext)
			if prev, ok := t.byExt[ext]; ok {
				return nil, fmt.Errorf("parse languages table: extension %s claimed by %s and %s", ext, prev, lang)
			}
			t.byExt[ext] = lang
		}
		for _, name := range spec.Filenames {
			t.byFilename[strings.ToLower(name)] = lang
		}
		for _, interp := range spec.Shebangs {
			t.byShebang[strings.ToLower(interp)] = lang
		}
		if len(spec.Keywords) > 0 {
			t.keywords[lang] = spec.Keywords
		}
	}

	for ext, names := range file.Ambiguous {
		ext = normalizeExt(ext)
		if _, ok := t.byExt[ext]; ok {
			return nil, fmt.Errorf("parse languages table: extension %s is both fixed and ambiguous", ext)
		}
		candidates := lo.Map(names, func(n string, _ int) Language { return Language(strings.ToLower(n)) })
		if len(candidates) == 0 {
			return nil, fmt.Errorf("parse languages table: ambiguous extension %s has no candidates", ext)
		}
		for _, c := range candidates {
			if !lo.Contains(t.ordered, c) {
				return nil, fmt.Errorf("parse languages table: ambiguous extension %s names unknown language %s", ext, c)
			}
		}
		t.ambiguous[ext] = candidates
	}
	return t, nil
}

// SupportedExtensions returns the sorted allow-list, including ambiguous extensions.
func SupportedExtensions() []string {
	t := mustTable()
	exts := append(lo.Keys(t.byExt), lo.Keys(t.ambiguous)...)
	sort.Strings(exts)
	return exts
}

// Languages returns every language the detector can report, in table order.
func Languages() []Language {
	return append([]Language(nil), mustTable().ordered...)
}

// LanguageForExtension returns the language an extension maps to. Ambiguous
// extensions report their candidates instead.
func LanguageForExtension(ext string) (Language, []Language, bool) {
	t := mustTable()
	ext = normalizeExt(ext)
	if lang, ok := t.byExt[ext]; ok {
		return lang, nil, true
	}
	if candidates, ok := t.ambiguous[ext]; ok {
		return "", append([]Language(nil), candidates...), true
	}
	return "", nil, false
}

func mustTable() *table {
	t, err := loadTable()
	if err != nil {
		panic(err)
	}
	return t
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
