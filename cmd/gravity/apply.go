package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

var errNothingApplied = errors.New("no command was applied")

func newApplyCmd() *cobra.Command {
	var (
		project string
		file    string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "apply STATEMENT...",
		Short: "Apply edit commands to a saved project",
		Long: `Run tool-call statements such as gravity_ai.cut_clip(clip_id="2") against a project
and save the result. Statements given as separate arguments run as one undoable edit.`,
		Example: `  gravity apply -p Trip 'gravity_ai.cut_clip(clip_id="2")'
  gravity apply --file trip.gravity.json 'split_clip("1", 2.5)' --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.loadProject(ctx, project, file)
			if err != nil {
				return err
			}
			return a.apply(ctx, p, strings.Join(args, "\n"), !dryRun, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (defaults to the last saved project)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the project from this file instead of the store")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the outcome without saving")
	return cmd
}

// apply runs text against p through the session and saves the base project
// when something was committed.
func (a *app) apply(ctx context.Context, p *edl.Project, text string, save bool, w io.Writer) error {
	if err := a.session.Load(p); err != nil {
		return err
	}
	rep, err := a.session.Execute(a.executor, text)
	if err != nil {
		return err
	}
	if rep.Unrecognized {
		return fmt.Errorf("%w in %q", command.ErrUnrecognized, text)
	}
	for _, line := range rep.Messages() {
		fmt.Fprintln(w, line)
	}
	if !rep.Committed {
		if err := rep.Err(); err != nil {
			return err
		}
		return errNothingApplied
	}

	if !save {
		fmt.Fprintln(w, "dry run: not saved")
		return nil
	}
	path, err := a.persister.Save(ctx, a.session.BaseProject())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %s to %s\n", a.session.BaseProject().Name, path)
	return nil
}
