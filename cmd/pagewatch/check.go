package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/normalize"
)

var checkCmd = &cobra.Command{
	Use:   "check <page>",
	Short: "Extract a configured page once and print raw and normalized content.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	page, ok := config.Find(e.pages, args[0])
	if !ok {
		return fmt.Errorf("unknown page %q", args[0])
	}

	backend, err := newBackend(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.ExtractTimeout)
	defer cancel()

	session, err := backend.Open(ctx, page.ID)
	if err != nil {
		return err
	}
	defer session.Close()

	raw, err := session.Extract(ctx, page.URL, page.Selector)
	if err != nil {
		return fmt.Errorf("%s: %w", page.ID, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "page:       %s\nurl:        %s\nselector:   %s\n", page.ID, page.URL, page.Selector)
	fmt.Fprintf(out, "raw:        %s\nnormalized: %s\n", raw, normalize.Normalize(raw))
	return nil
}
