// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olegiv/portal-cms/internal/linkcheck"
	"github.com/olegiv/portal-cms/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// newApp migrates on open
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo region and index its links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := store.Seed(ctx, a.db); err != nil {
				return fmt.Errorf("seeding database: %w", err)
			}
			// A shared Redis cache may still hold lookups from an older database.
			if err := a.cache.Clear(ctx); err != nil {
				a.logger.Warn("failed to clear cache after seeding", "error", err)
			}
			n, err := a.index.ReindexAll(ctx)
			if err != nil {
				return fmt.Errorf("indexing links: %w", err)
			}
			if err := a.index.Drain(ctx, a.cfg.DrainTimeout); err != nil {
				return fmt.Errorf("indexing links: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded region %q, indexed %d translations\n", store.DemoRegionSlug, n)
			return nil
		},
	}
}

func replaceLinksCmd() *cobra.Command {
	var (
		exact    bool
		dryRun   bool
		region   string
		language string
		userID   int64
		types    []string
	)

	cmd := &cobra.Command{
		Use:   "replace-links SEARCH REPLACE",
		Short: "Replace a URL in the latest version of every translation",
		Long: `Replace SEARCH with REPLACE in every link of the latest translations.

By default every URL containing SEARCH has that part replaced. With --exact
only URLs equal to SEARCH (ignoring leading and trailing slashes) match and
are replaced as a whole. Each changed translation is saved as a new minor
version. With --dry-run the changes are listed without being saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p := linkcheck.ReplaceParams{
				Search:       args[0],
				Replace:      args[1],
				PartialMatch: !exact,
				Region:       region,
				Language:     language,
				Commit:       !dryRun,
				LinkTypes:    types,
			}
			if cmd.Flags().Changed("user") {
				p.UserID = &userID
			}

			result, err := a.links.ReplaceLinks(ctx, p)
			if err != nil {
				return fmt.Errorf("replacing links: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&exact, "exact", false, "Match whole URLs instead of substrings")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the changes without saving them")
	cmd.Flags().StringVar(&region, "region", "", "Limit the replacement to a region slug")
	cmd.Flags().StringVar(&language, "language", "", "Limit the replacement to a language slug")
	cmd.Flags().Int64Var(&userID, "user", 0, "User ID recorded as creator of the new versions")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only replace URLs of these types (internal, external, mailto, phone)")

	return cmd
}

func checkLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-links",
		Short: "Check the health of one batch of URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.checker().Run(ctx)
			if err != nil {
				return fmt.Errorf("checking links: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func urlCountCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "url-count",
		Short: "Print the number of URLs per health category",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.links.URLCount(ctx, region)
			if err != nil {
				return fmt.Errorf("counting URLs: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), counts)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Count only links inside a region slug")

	return cmd
}

func translateLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate-link URL TEXT LANGUAGE",
		Short: "Point an internal link at another language",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rw, changed, err := a.resolver.UpdateLinkLanguage(ctx, args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("translating link: %w", err)
			}
			if !changed {
				rw.URL, rw.Text = args[0], args[1]
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"url":     rw.URL,
				"text":    rw.Text,
				"changed": changed,
			})
		},
	}
}
