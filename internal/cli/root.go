// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - Command tree and shared setup for the ragchat CLI.
//
// Command: ragchat [command]
//
// Running ragchat without a command starts the TUI.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/session"
)

// Version information (set from main at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationLogToFile marks commands that own the terminal and must log to
// the configured file.
const annotationLogToFile = "log-to-file"

// rootOptions are the persistent flags.
type rootOptions struct {
	configPath string
	baseURL    string
	verbose    bool
}

// app carries the configuration and client shared by every command. It is
// filled in by setup before a command runs.
type app struct {
	opts      rootOptions
	cfg       *config.Config
	client    *api.Client
	logCloser io.Closer
}

// NewRootCmd builds the ragchat command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Terminal client for a retrieval-augmented chat service",
		Long: "ragchat talks to a retrieval-augmented chat service: hold conversations,\n" +
			"watch answers stream in with their sources, and manage the documents the\n" +
			"service answers from.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{annotationLogToFile: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "Config file (default: ~/.ragchat/config.toml)")
	flags.StringVar(&a.opts.baseURL, "base-url", "", "Chat service origin (overrides server.base_url)")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newTUICmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newConversationsCmd(a),
		newDocumentsCmd(a),
		newHealthCmd(a),
		newConfigCmd(a),
		newDevserverCmd(a),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads .env files and configuration, applies flag overrides, starts
// logging and builds the service client.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if a.opts.configPath != "" {
		cfg, err = config.LoadFromPath(a.opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.opts.baseURL != "" {
		cfg.Server.BaseURL = a.opts.baseURL
	}
	a.cfg = cfg
	config.SetGlobal(cfg)

	if err := a.startLogging(cmd); err != nil {
		return err
	}

	a.client = api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.APIBase(),
		Timeout:           cfg.RequestTimeout(),
		StreamIdleTimeout: cfg.StreamIdleTimeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
	})
	return nil
}

// startLogging logs to stderr with --verbose. Commands that own the terminal
// log to the configured file instead; other commands stay silent.
func (a *app) startLogging(cmd *cobra.Command) error {
	lc := logging.Config{Level: a.cfg.Log.Level, Pretty: a.cfg.Log.Pretty}
	switch {
	case cmd.Annotations[annotationLogToFile] == "true":
		if a.cfg.Log.Path == "" {
			return nil
		}
		if a.opts.verbose {
			lc.Level = "debug"
		}
		lc.Path = a.cfg.Log.Path
	case a.opts.verbose:
		lc.Level = "debug"
		lc.Pretty = true
		lc.Output = os.Stderr
	default:
		return nil
	}

	closer, err := logging.Init(lc)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	a.logCloser = closer
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// newController creates a session controller bound to ctx.
func (a *app) newController(ctx context.Context) *session.Controller {
	return session.New(session.FromAPI(a.client), session.Options{
		SummaryLimit: a.cfg.Cache.SummaryLimit,
		Context:      ctx,
	})
}
