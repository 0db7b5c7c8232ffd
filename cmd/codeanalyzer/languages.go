package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"code-analyzer/internal/validate"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List recognized languages and file extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			langs := lo.Map(validate.Languages(), func(l validate.Language, _ int) string { return string(l) })
			fmt.Fprintf(out, "Languages (%d):\n  %s\n", len(langs), strings.Join(langs, ", "))
			exts := validate.SupportedExtensions()
			fmt.Fprintf(out, "Extensions (%d):\n  %s\n", len(exts), strings.Join(exts, " "))
			return nil
		},
	}
}
