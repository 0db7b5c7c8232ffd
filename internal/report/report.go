// Package report turns raw model output into the fixed five-section
// markdown document that is written to the destination store.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"code-analyzer/internal/shared/errkind"
)

// Placeholder fills a section the model did not provide.
const Placeholder = "Not provided by analysis"

// Title is the document's top-level heading.
const Title = "Code Analysis Report"

// Section is one of the five fixed report sections.
type Section int

const (
	CodePurpose Section = iota
	MainComponents
	DataStructures
	Dependencies
	ArchitecturalPatterns
)

// Sections lists the report sections in output order.
var Sections = []Section{CodePurpose, MainComponents, DataStructures, Dependencies, ArchitecturalPatterns}

func (s Section) String() string {
	switch s {
	case CodePurpose:
		return "Code Purpose"
	case MainComponents:
		return "Main Components"
	case DataStructures:
		return "Data Structures"
	case Dependencies:
		return "Dependencies"
	case ArchitecturalPatterns:
		return "Architectural Patterns"
	default:
		return fmt.Sprintf("Section(%d)", int(s))
	}
}

// Metadata is the header information. AnalyzedAt is supplied by the caller
// so rendering never reads a clock.
type Metadata struct {
	Filename   string
	AnalyzedAt time.Time
	Language   string
}

// Document is a rendered report.
type Document struct {
	Markdown string
	Metadata Metadata
	sections [5]string
}

// Section returns the normalised body of s, or Placeholder.
func (d Document) Section(s Section) string {
	if s < CodePurpose || s > ArchitecturalPatterns {
		return ""
	}
	return d.sections[s]
}

// Bytes returns the markdown as bytes for storage.
func (d Document) Bytes() []byte {
	return []byte(d.Markdown)
}

// Render builds the report. Only missing metadata is an error; any model
// text, including empty or heading-free text, renders.
func Render(analysisText string, meta Metadata) (Document, error) {
	const op = "report render"

	meta.Filename = strings.TrimSpace(flatten(meta.Filename))
	if meta.Filename == "" {
		return Document{}, errkind.Newf(errkind.InvalidMetadata, op, "filename is required")
	}
	if meta.AnalyzedAt.IsZero() {
		return Document{}, errkind.Newf(errkind.InvalidMetadata, op, "analysis timestamp is required")
	}
	meta.Language = strings.TrimSpace(flatten(meta.Language))
	if meta.Language == "" {
		meta.Language = "unknown"
	}

	doc := Document{Metadata: meta, sections: splitSections(analysisText)}

	var b strings.Builder
	b.WriteString("# " + Title + "\n\n")
	fmt.Fprintf(&b, "**Original File**: %s\n", meta.Filename)
	fmt.Fprintf(&b, "**Analysis Date**: %s\n", meta.AnalyzedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Detected Language**: %s\n", meta.Language)
	for _, s := range Sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s, doc.sections[s])
	}
	doc.Markdown = b.String()
	return doc, nil
}

// flatten replaces control characters so a header value stays on its line.
func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
