package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nijaru/captioner/transcription"
)

func newHealthCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check ffmpeg and the transcription engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps(*configFlag, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer deps.Close()

			statuses := deps.service().HealthCheck(deps.withLogger(cmd.Context()))
			return printHealth(cmd.OutOrStdout(), statuses)
		},
	}
}

// printHealth renders statuses and returns an error naming the first failing
// component.
func printHealth(w io.Writer, statuses []transcription.HealthStatus) error {
	rows := make([][]string, 0, len(statuses))
	var failed error
	for _, s := range statuses {
		state := "ok"
		if !s.OK {
			state = "FAIL"
			if failed == nil {
				failed = errors.Errorf("%s is unhealthy: %s", s.Component, s.Message)
			}
		}
		rows = append(rows, []string{s.Component, state, strconv.FormatInt(s.LatencyMS, 10) + "ms", s.Message})
	}

	fmt.Fprintln(w, renderTable(
		[]string{"Component", "Status", "Latency", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	return failed
}
