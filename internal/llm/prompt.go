package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const systemPrompt = "You are a code analysis assistant. You read a single source file and explain what it does, " +
	"how it is structured and what it depends on. Be factual, cite identifiers from the code, and never invent behavior " +
	"that is not present in the file."

const reviewSystemPrompt = "You are a code analysis assistant. When given code or a question about code, focus on " +
	"quality, security, performance and maintainability. Point out likely bugs, vulnerabilities and anti-patterns, " +
	"suggest concrete improvements, and format the answer as readable markdown."

const analysisTemplate = `Analyze the following {{LANGUAGE}} source file named "{{FILENAME}}".

Respond in markdown with exactly these five sections, in this order, each introduced by a level-2 heading:

## Code Purpose
What the file is for and the problem it solves, in one or two short paragraphs.

## Main Components
The functions, classes, modules or entry points that matter, with one line each.

## Data Structures
The types, records, schemas and important variables, and how they are used.

## Dependencies
Imported libraries, external services, files or environment the code relies on.

## Architectural Patterns
Design patterns, layering, concurrency or error-handling approaches visible in the code.

Do not add other top-level sections. Use "###" for any sub-headings.{{ADDITIONS}}

Source file ({{LANGUAGE}}):
{{FENCE}}{{FENCE_LANGUAGE}}
{{CODE}}
{{FENCE}}
`

// Prompt is the rendered system and user text for one analysis.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the analysis prompt. The output depends only on its
// arguments.
func BuildPrompt(content []byte, filename, language, promptAdditions string) Prompt {
	language = strings.TrimSpace(language)
	if language == "" {
		language = "unknown"
	}
	fence := language
	if language == "unknown" {
		fence = ""
	}

	additions := ""
	if extra := strings.TrimSpace(promptAdditions); extra != "" {
		additions = "\n\nAdditional instructions from the requester:\n" + extra
	}

	replacer := strings.NewReplacer(
		"{{LANGUAGE}}", language,
		"{{FILENAME}}", filename,
		"{{FENCE}}", codeFence(content),
		"{{FENCE_LANGUAGE}}", fence,
		"{{ADDITIONS}}", additions,
	)
	// The code is spliced in verbatim; placeholders inside it are left alone.
	before, after, _ := strings.Cut(analysisTemplate, "{{CODE}}")
	user := replacer.Replace(before) + strings.TrimRight(string(content), "\n") + replacer.Replace(after)

	return Prompt{System: systemPrompt, User: user}
}

// codeFence returns a backtick fence longer than any backtick run in content,
// so fences inside the code cannot close the block early.
func codeFence(content []byte) string {
	longest, run := 0, 0
	for _, b := range content {
		if b == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

// Hash is a stable fingerprint of the prompt, logged instead of the code.
func (p Prompt) Hash() string {
	return hashPromptString("system: " + p.System + "\n\nuser: " + p.User)
}

func hashPromptString(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
