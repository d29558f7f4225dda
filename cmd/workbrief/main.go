package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinayprograms/agentkit/credentials"

	"github.com/vinayprograms/workbrief/internal/config"
	"github.com/vinayprograms/workbrief/internal/coordinator"
	"github.com/vinayprograms/workbrief/internal/mcpserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in GetAPIKey)
var globalCreds *credentials.Credentials

func init() {
	// Priority: credentials.toml > env vars (handled by GetAPIKey)
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}

	_ = godotenv.Load()
}

// app carries what every command needs.
type app struct {
	out io.Writer
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("workbrief"),
		kong.Description("Cross-domain work brief generator"),
		kong.UsageOnError(),
		kongVars(),
	)

	// Loggers write to stdout. Keep stdout for command output and send
	// logs to stderr.
	out := os.Stdout
	os.Stdout = os.Stderr

	err := ctx.Run(&app{out: out})
	ctx.FatalIfErrorf(err)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

func applyOverrides(cfg *config.Config, fixtures string, fast bool) {
	if fixtures != "" {
		cfg.Fixtures.Dir = fixtures
	}
	if fast {
		cfg.ForceFast()
	}
}

// Run generates one brief.
func (c *GenerateCmd) Run(a *app) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	applyOverrides(cfg, c.Fixtures, c.Fast)

	rt, err := newRuntime(cfg, globalCreds)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, genErr := rt.coordinator.GenerateBrief(ctx, c.Session, c.User)
	if genErr != nil && !errors.Is(genErr, coordinator.ErrPipelineFailure) {
		return genErr
	}

	enc := json.NewEncoder(a.out)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("writing brief: %w", err)
	}
	return genErr
}

// Run serves MCP over stdio.
func (c *ServeCmd) Run(a *app) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	applyOverrides(cfg, c.Fixtures, c.Fast)

	rt, err := newRuntime(cfg, globalCreds)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mcpserver.New(rt.coordinator, version)
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, a.out)
}

// Run validates the config file.
func (c *ValidateConfigCmd) Run(a *app) error {
	cfg, err := config.LoadFile(c.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: ok (synthesis=%s, store=%s, llm=%v)\n",
		c.Path, cfg.Synthesis.Mode, cfg.Store.Driver, cfg.NeedsLLM())
	return nil
}

// Run prints the version.
func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(a.out, "workbrief version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
