package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"code-analyzer/internal/shared/errkind"
)

func TestIsSupportedTypeAllowList(t *testing.T) {
	t.Parallel()

	supported := []string{
		".py", ".pyw", ".pyi", ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx", ".mts", ".cts",
		".go", ".java", ".kt", ".kts", ".scala", ".sc", ".c", ".h", ".cpp", ".cc", ".cxx",
		".hpp", ".hh", ".hxx", ".m", ".mm", ".cs", ".rb", ".rake", ".php", ".swift", ".rs",
		".sh", ".bash", ".zsh", ".ksh", ".ps1", ".psm1", ".pl", ".pm", ".lua", ".r", ".dart",
		".ex", ".exs", ".erl", ".hrl", ".hs", ".clj", ".cljs", ".cljc", ".groovy", ".gradle",
		".sql", ".html", ".htm", ".css", ".scss", ".sass", ".less", ".vue", ".svelte",
		".json", ".yaml", ".yml", ".toml", ".xml", ".md", ".proto", ".graphql", ".gql",
		".tf", ".hcl", ".dockerfile", ".mk",
	}
	require.ElementsMatch(t, supported, SupportedExtensions())

	for _, ext := range supported {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()
			require.True(t, IsSupportedType("src/file"+ext))
			require.True(t, IsSupportedType("FILE"+strings.ToUpper(ext)), "extension match must ignore case")
		})
	}

	unsupported := []string{
		"notes.exe", "image.png", "archive.zip", "report.pdf", "lib.so", "data.bin",
		"README", "noext", "trailingdot.", "", "dir/", ".py.exe",
	}
	for _, name := range unsupported {
		name := name
		t.Run("reject "+name, func(t *testing.T) {
			t.Parallel()
			require.False(t, IsSupportedType(name))
		})
	}
}

func TestIsSupportedTypeKnownFilenames(t *testing.T) {
	require.True(t, IsSupportedType("build/Dockerfile"))
	require.True(t, IsSupportedType("Makefile"))
	require.True(t, IsSupportedType(`C:\repo\Makefile`))
}

func TestCheckSize(t *testing.T) {
	v := New(0)
	require.Equal(t, DefaultMaxBytes, v.MaxBytes())
	require.True(t, v.CheckSize(0))
	require.True(t, v.CheckSize(DefaultMaxBytes))
	require.False(t, v.CheckSize(DefaultMaxBytes+1))
	require.False(t, v.CheckSize(-1))
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		description string
		filename    string
		content     string
		want        Language
	}{
		{description: "extension wins", filename: "calc.py", content: "package main\nfunc main() {}\n", want: "python"},
		{description: "upper-case extension", filename: "Main.JAVA", content: "", want: "java"},
		{description: "known filename", filename: "Dockerfile", content: "FROM alpine\n", want: "dockerfile"},
		{
			description: "ambiguous header with c++ markers",
			filename:    "vec.h",
			content:     "#pragma once\nnamespace geo {\ntemplate<typename T>\nclass Vec { public:\n T x; };\n}\n",
			want:        "cpp",
		},
		{
			description: "ambiguous header with objective-c markers",
			filename:    "View.h",
			content:     "#import <UIKit/UIKit.h>\n@interface View : UIView\n@property NSString *title;\n@end\n",
			want:        "objective-c",
		},
		{description: "ambiguous header without signal defaults to first candidate", filename: "x.h", content: "int x;\n", want: "c"},
		{
			description: "ambiguous .m with matlab markers",
			filename:    "solve.m",
			content:     "function y = solve(x)\n% solve the thing\ny = zeros(3);\ndisp(y);\nend\n",
			want:        "matlab",
		},
		{description: "shebang via env", filename: "run", content: "#!/usr/bin/env -S python3 -u\nprint('hi')\n", want: "python"},
		{description: "direct shebang", filename: "deploy", content: "#!/bin/bash\nset -e\n", want: "shell"},
		{
			description: "keyword density without extension",
			filename:    "main",
			content:     "package main\n\nfunc main() {\n\tx := 1\n\tdefer close()\n\tgo func() {}()\n}\n",
			want:        "go",
		},
		{description: "no signal", filename: "blob", content: "lorem ipsum", want: Unknown},
		{description: "empty content no extension", filename: "", content: "", want: Unknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.description, func(t *testing.T) {
			t.Parallel()
			got := DetectLanguage([]byte(tt.content), tt.filename)
			require.NotEmpty(t, got)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	v := New(64)

	lang, err := v.Check("calc.py", []byte("def add(a, b):\n    return a + b\n"), 33)
	require.NoError(t, err)
	require.Equal(t, Language("python"), lang)

	_, err = v.Check("notes.exe", []byte("MZ"), 2)
	require.True(t, errkind.Is(err, errkind.UnsupportedType), "got %v", err)

	_, err = v.Check("big.py", []byte(strings.Repeat("x", 65)), 65)
	require.True(t, errkind.Is(err, errkind.PayloadTooLarge), "got %v", err)

	_, err = v.Check("big.py", []byte("x = 1"), 4096)
	require.True(t, errkind.Is(err, errkind.PayloadTooLarge), "reported size must be honored, got %v", err)

	_, err = v.Check("fake.py", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d}, 12)
	require.True(t, errkind.Is(err, errkind.UnsupportedType), "binary content must be rejected, got %v", err)
}

func TestIsBinary(t *testing.T) {
	require.False(t, IsBinary(nil))
	require.False(t, IsBinary([]byte(`{"a": 1}`)))
	require.False(t, IsBinary([]byte("<?xml version=\"1.0\"?><a/>")))
	require.True(t, IsBinary([]byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe, 0x00}))
}

func TestParseTableRejectsConflicts(t *testing.T) {
	_, err := parseTable([]byte("languages:\n  - name: a\n    extensions: [.x]\n  - name: b\n    extensions: [.x]\n"))
	require.Error(t, err)

	_, err = parseTable([]byte("languages:\n  - name: a\n    extensions: [.x]\nambiguous:\n  .x: [a]\n"))
	require.Error(t, err)

	_, err = parseTable([]byte("languages:\n  - name: a\nambiguous:\n  .y: [zzz]\n"))
	require.Error(t, err)
}

func TestLanguageForExtension(t *testing.T) {
	lang, candidates, ok := LanguageForExtension("RS")
	require.True(t, ok)
	require.Equal(t, Language("rust"), lang)
	require.Empty(t, candidates)

	_, candidates, ok = LanguageForExtension(".m")
	require.True(t, ok)
	require.Equal(t, []Language{"objective-c", "matlab"}, candidates)

	_, _, ok = LanguageForExtension(".exe")
	require.False(t, ok)
}
