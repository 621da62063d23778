package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nijaru/captioner/handlers"
	"github.com/nijaru/captioner/transcription"
	"github.com/nijaru/captioner/utils"
)

func newTranscribeCommand(configFlag *string) *cobra.Command {
	var timestamps bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Transcribe a local video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps(*configFlag, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer deps.Close()

			if cmd.Flags().Changed("timestamps") {
				deps.cfg.Transcription.Timestamps = timestamps
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open video")
			}
			defer f.Close()

			transcript, err := deps.service().ProcessVideo(deps.withLogger(cmd.Context()), f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			return printTranscript(cmd.OutOrStdout(), transcript, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Produce timed segments")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the /generate response body as JSON")

	return cmd
}

func printTranscript(w io.Writer, transcript *transcription.Transcript, jsonOutput bool) error {
	if jsonOutput {
		styling := handlers.Styling{
			Font:         handlers.DefaultFont,
			TextColor:    handlers.DefaultTextColor,
			OutlineColor: handlers.DefaultOutlineColor,
			WordsPerLine: handlers.DefaultWordsPerLine,
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(handlers.NewResponse(transcript, styling))
	}

	if !transcript.HasSegments() {
		_, err := fmt.Fprint(w, utils.FormatText(transcript.PlainText()))
		return err
	}

	rows := make([][]string, 0, len(transcript.Segments))
	for _, seg := range transcript.Segments {
		rows = append(rows, []string{formatTimestamp(seg.Start), formatTimestamp(seg.End), seg.Text})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft},
	))
	return err
}

// formatTimestamp renders d as HH:MM:SS.mmm.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}
