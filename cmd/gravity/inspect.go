package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/export"
	"github.com/rampellisaieshwar/GravityEdits/internal/ui"
)

const maxTextColumn = 40

func newInspectCmd() *cobra.Command {
	var (
		file      string
		asEDL     bool
		asJSON    bool
		frameRate float64
	)
	cmd := &cobra.Command{
		Use:   "inspect [NAME]",
		Short: "Print a project's timeline",
		Long:  "Print a summary of a saved project, its CMX3600 edit decision list with --edl, or the raw project with --json.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			p, err := a.loadProject(ctx, name, file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asEDL:
				_, err = io.WriteString(out, export.GenerateEDL(export.Events(p), p.Name, frameRate))
				return err
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			return writeSummary(out, p)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the project from this file instead of the store")
	cmd.Flags().BoolVar(&asEDL, "edl", false, "print the CMX3600 edit decision list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the project document")
	cmd.Flags().Float64Var(&frameRate, "fps", export.DefaultFrameRate, "frame rate for --edl timecodes")
	cmd.MarkFlagsMutuallyExclusive("edl", "json")
	return cmd
}

func writeSummary(w io.Writer, p *edl.Project) error {
	kept := 0
	for _, c := range p.EDL {
		if c.Keep {
			kept++
		}
	}

	fmt.Fprintf(w, "Project:  %s\n", p.Name)
	fmt.Fprintf(w, "Clips:    %d (%d kept)\n", len(p.EDL), kept)
	fmt.Fprintf(w, "Duration: %s (%s kept)\n", ui.FormatClock(p.TotalDuration()), ui.FormatClock(p.KeptDuration()))
	fmt.Fprintf(w, "Overlays: %d  Audio clips: %d  Shorts: %d\n", len(p.Overlays), len(p.AudioClips), len(p.ViralShorts))
	if len(p.EDL) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tKEEP\tSOURCE\tSTART\tEND\tTEXT")
	for i, c := range p.EDL {
		keep := "no"
		if c.Keep {
			keep = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n", i+1, c.ID, keep, c.Source, c.Start, c.End, truncate(c.Text, maxTextColumn))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for i, s := range p.ViralShorts {
		fmt.Fprintf(w, "\nShort %d: %s [%s]", i, s.Title, strings.Join(s.ClipIDs, ", "))
	}
	if len(p.ViralShorts) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
