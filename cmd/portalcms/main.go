// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main is the entry point for the portalcms CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/portal-cms/internal/version"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "portalcms",
		Short: "Portal CMS link maintenance",
		Long: `Portal CMS serves the link health API and runs link maintenance tasks:
URL health checks, bulk link replacement and internal link translation.

Configuration is read from PCMS_* environment variables. A .env file in
the working directory (or the one given with --env-file) is loaded first
and never overrides variables that are already set.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("loading %s: %w", envFile, err)
				}
				return nil
			}
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		replaceLinksCmd(),
		checkLinksCmd(),
		urlCountCmd(),
		translateLinkCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "portalcms %s\n", version.Get())
		},
	}
}
