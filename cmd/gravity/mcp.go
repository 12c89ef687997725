package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rampellisaieshwar/GravityEdits/internal/logging"
	gravitymcp "github.com/rampellisaieshwar/GravityEdits/internal/mcp"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

func newMCPCmd() *cobra.Command {
	var (
		project  string
		autosave bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the timeline tools over MCP on stdio",
		Long:  "Run a Model Context Protocol server on stdin/stdout. Logs go to stderr. Edits are saved after every change unless --autosave=false.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.openProject(ctx, project); err != nil {
				return err
			}
			if autosave {
				a.session.OnChange(a.saveOnEdit(ctx))
			}

			server := gravitymcp.NewServer(gravitymcp.Config{
				Session:  a.session,
				Executor: a.executor,
				Version:  Version,
				Logger:   logging.WithComponent(a.logger, "mcp"),
			})
			a.logger.Info("mcp stdio server starting", "version", Version)
			return gravitymcp.RunStdio(ctx, server)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name to open (defaults to the last saved project)")
	cmd.Flags().BoolVar(&autosave, "autosave", true, "save the project after every edit")
	return cmd
}

// saveOnEdit returns a listener that persists the base project after edits
// and undos. Edits inside a short are never saved.
func (a *app) saveOnEdit(ctx context.Context) session.Listener {
	return func(ev session.Event) {
		if ev.InShort || (ev.Kind != session.EventEdit && ev.Kind != session.EventUndo) {
			return
		}
		base := a.session.BaseProject()
		if base == nil {
			return
		}
		if _, err := a.persister.Save(ctx, base); err != nil {
			a.logger.Warn("autosave failed", "project", base.Name, "error", err)
		}
	}
}
