// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Generate       GenerateCmd       `cmd:"" help:"Generate a brief and print it as JSON"`
	Serve          ServeCmd          `cmd:"" help:"Serve generate_brief over MCP stdio"`
	ValidateConfig ValidateConfigCmd `cmd:"" name:"validate-config" help:"Validate a config file"`
	Version        VersionCmd        `cmd:"" help:"Show version information"`
}

// GenerateCmd runs the pipeline once.
type GenerateCmd struct {
	User     string `short:"u" required:"" help:"User the brief is for"`
	Session  string `short:"s" help:"Session id (generated when omitted)"`
	Fixtures string `help:"Fixture directory (overrides config)"`
	Config   string `short:"c" help:"Config file path"`
	Fast     bool   `help:"Use deterministic analysis everywhere, never the LLM"`
	Compact  bool   `help:"Print the brief without indentation"`
}

// ServeCmd runs the MCP server.
type ServeCmd struct {
	Fixtures string `help:"Fixture directory (overrides config)"`
	Config   string `short:"c" help:"Config file path"`
	Fast     bool   `help:"Use deterministic analysis everywhere, never the LLM"`
}

// ValidateConfigCmd checks a config file.
type ValidateConfigCmd struct {
	Path string `arg:"" optional:"" default:"workbrief.toml" help:"Config file path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
