package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/notify"
)

func TestNewNotifier_FallsBackToStdout(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := newNotifier(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got := n.(*notify.Router).Len(); got != 1 {
		t.Fatalf("expected 1 fallback sink, got %d", got)
	}
}

func TestNewNotifier_AllSinks(t *testing.T) {
	cfg, err := config.Parse([]byte(`
webhook_url: https://discord.example/api/webhooks/1/x
sinks:
  - type: webhook
    url: https://hooks.example/pagewatch
  - type: stdout
`))
	if err != nil {
		t.Fatal(err)
	}
	n, err := newNotifier(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got := n.(*notify.Router).Len(); got != 3 {
		t.Fatalf("expected 3 sinks, got %d", got)
	}
}

func TestLoadEnv_MissingDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir) // the default log_dir is relative
	pages := filepath.Join(dir, "pages.yml")
	if err := os.WriteFile(pages, []byte("shop:\n  url: https://shop.example/\n  selector: \"#price\"\n  refresh_time: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldConfig, oldPages := configPath, pagesPath
	t.Cleanup(func() { configPath, pagesPath = oldConfig, oldPages })
	configPath = filepath.Join(dir, "absent.yml")
	pagesPath = pages

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")

	e, err := loadEnv(cmd)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if len(e.pages) != 1 || e.pages[0].ID != "shop" {
		t.Fatalf("pages = %+v", e.pages)
	}
	if e.cfg.Store != "sqlite" {
		t.Errorf("defaults not applied: %+v", e.cfg)
	}

	// An explicit --config that does not exist is an error.
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatal(err)
	}
	if _, err := loadEnv(cmd); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestLoadEnv_RejectsIntervalWithinExtractTimeout(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgFile := filepath.Join(dir, "config.yml")
	pagesFile := filepath.Join(dir, "pages.yml")
	if err := os.WriteFile(cfgFile, []byte("extract_timeout: 10s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pagesFile, []byte("shop:\n  url: https://shop.example/\n  selector: \"#price\"\n  refresh_time: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldConfig, oldPages := configPath, pagesPath
	t.Cleanup(func() { configPath, pagesPath = oldConfig, oldPages })
	configPath, pagesPath = cfgFile, pagesFile

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	if _, err := loadEnv(cmd); err == nil || !strings.Contains(err.Error(), "extract_timeout") {
		t.Fatalf("got %v, want extract_timeout error", err)
	}
}
