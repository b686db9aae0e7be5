package main

import (
	"fmt"
	"strings"

	"lectern/internal/runner"
)

// renderEvent formats one run event for terminal output. Status events
// return an empty string; they duplicate what the other kinds already
// show.
func renderEvent(evt runner.Event) string {
	ts := evt.Timestamp.Format("15:04:05")
	switch evt.Kind {
	case runner.KindLog:
		if evt.Log == nil {
			return ""
		}
		return fmt.Sprintf("%s  %-9s %s", ts, evt.Log.Stream, evt.Log.Line)
	case runner.KindStage:
		if evt.Stage == nil {
			return ""
		}
		return fmt.Sprintf("%s  folder %d/%d: %s", ts, evt.Stage.Index, evt.Stage.Total, evt.Stage.Folder)
	case runner.KindProgress:
		if evt.Progress == nil {
			return ""
		}
		line := fmt.Sprintf("%s  progress %d/%d", ts, evt.Progress.Done, evt.Progress.Total)
		if evt.Progress.Status != "" {
			line += " " + evt.Progress.Status
		}
		if evt.Progress.Source != "" {
			line += "  " + evt.Progress.Source
		}
		return line
	case runner.KindFinish:
		if evt.Finish == nil {
			return ""
		}
		outcome := "failed"
		if evt.Finish.Success {
			outcome = "succeeded"
		}
		msg := strings.TrimSpace(evt.Finish.Message)
		if msg != "" {
			return fmt.Sprintf("%s  run %s: %s", ts, outcome, msg)
		}
		return fmt.Sprintf("%s  run %s", ts, outcome)
	default:
		return ""
	}
}
