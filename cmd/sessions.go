package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/facecam/internal/store"
	"github.com/andresmejia3/facecam/internal/utils"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded capture sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			return err
		}

		sessions, err := DB.ListSessions(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to list sessions", err, nil)
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found in database.")
			return nil
		}
		printSessions(os.Stdout, sessions)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the recognitions of one capture session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			return err
		}

		recs, err := DB.SessionRecognitions(cmd.Context(), args[0])
		if err != nil {
			utils.ShowError("Failed to load session history", err, nil)
			return err
		}
		if len(recs) == 0 {
			fmt.Printf("No faces were recorded in session %s.\n", args[0])
			return nil
		}
		printRecognitions(os.Stdout, recs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
}

func printSessions(out io.Writer, sessions []store.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTARTED\tDURATION\tFRAMES\tFACES\tEXPORT")
	fmt.Fprintln(w, "--\t------\t-------\t--------\t------\t-----\t------")

	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		export := "-"
		if s.Recording {
			export = s.ExportDir
			if s.RecordOnlyFace {
				export += " (faces)"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.Source, s.StartedAt.Local().Format(timeLayout), duration, s.Frames, s.Recognitions, export)
	}
	w.Flush()
}

func printRecognitions(out io.Writer, recs []store.Recognition) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FRAME\tLABEL\tCONFIDENCE\tBOX\tTIME\tFILE")
	fmt.Fprintln(w, "-----\t-----\t----------\t---\t----\t----")

	for _, r := range recs {
		confidence := "-"
		if r.Confidence != nil {
			confidence = strconv.FormatFloat(*r.Confidence, 'f', 1, 64)
		}
		file := r.ExportPath
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d,%d %dx%d\t%s\t%s\n",
			r.Frame, r.Label, confidence,
			r.Box.Min.X, r.Box.Min.Y, r.Box.Dx(), r.Box.Dy(),
			r.RecognizedAt.Local().Format(timeLayout), file)
	}
	w.Flush()
}
