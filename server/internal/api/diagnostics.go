package api

import (
	"fmt"
	"sort"

	"github.com/focusmonitor/focusmonitor/pkg/report"
)

// DiagnosticHint is one readable insight about a session's last minute.
// The UI shows these as chips on the session card.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from the latest minute score and second
// summary. Hints are ordered critical first, then warnings, then info.
func computeDiagnostics(sc *report.ScoreRecord, sec *report.SecondRecord) []DiagnosticHint {
	var hints []DiagnosticHint

	if sec != nil && sec.Samples > 0 && sec.NoFace >= sec.Samples {
		hints = append(hints, DiagnosticHint{
			Key:    "out_of_frame",
			Level:  "info",
			Title:  "Out of frame",
			Detail: "No face was detected in the most recent second.",
		})
	}

	if sc == nil {
		hints = append(hints, DiagnosticHint{
			Key:   "no_score_yet",
			Level: "info",
			Title: "Waiting for first minute",
			Detail: "The session is calibrating or has not completed a full minute yet. " +
				"A score appears once sixty seconds have been recorded.",
		})
		return sortHints(hints)
	}

	if sc.ConcentrationScore < waveringScore {
		v := float64(sc.ConcentrationScore)
		hints = append(hints, DiagnosticHint{
			Key:   "low_concentration",
			Level: "critical",
			Title: fmt.Sprintf("Score %d/100", sc.ConcentrationScore),
			Detail: fmt.Sprintf(
				"The last minute scored %d. Deductions: absence %.0f, looking away %.0f, "+
					"drowsiness %.0f, restlessness %.0f.",
				sc.ConcentrationScore, sc.Deductions.Absence, sc.Deductions.LookingAway,
				sc.Deductions.Sleeping, sc.Deductions.Unstable,
			),
			Value: &v,
		})
	}

	if sc.AbsenceRatio > 0 {
		v := float64(sc.AbsenceRatio)
		level := "info"
		switch {
		case sc.AbsenceRatio >= 60:
			level = "critical"
		case sc.AbsenceRatio >= 30:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "absent",
			Level: level,
			Title: fmt.Sprintf("%d%% absent", sc.AbsenceRatio),
			Detail: fmt.Sprintf(
				"The user was away from the camera for %d%% of the last minute. "+
					"Only gaps of two seconds or more are counted.",
				sc.AbsenceRatio,
			),
			Value: &v,
		})
	}

	if sc.Deductions.Sleeping > 0 {
		v := sc.Deductions.Sleeping
		hints = append(hints, DiagnosticHint{
			Key:   "drowsy",
			Level: "warning",
			Title: "Eyes closing",
			Detail: "Eyes stayed closed for more than ten consecutive seconds. " +
				"A short break may help.",
			Value: &v,
		})
	}

	if sc.Deductions.LookingAway > 0 {
		v := sc.Deductions.LookingAway
		level := "info"
		if v >= 10 {
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:    "looking_away",
			Level:  level,
			Title:  "Looking away",
			Detail: "Gaze left the screen for more than ten seconds in the last minute.",
			Value:  &v,
		})
	}

	if sc.Deductions.Unstable > 0 {
		v := sc.Deductions.Unstable
		hints = append(hints, DiagnosticHint{
			Key:    "restless",
			Level:  "info",
			Title:  "Restless",
			Detail: "Head movement was above the steady threshold for at least one five-second window.",
			Value:  &v,
		})
	}

	if len(hints) == 0 {
		v := float64(sc.ConcentrationScore)
		hints = append(hints, DiagnosticHint{
			Key:    "focused",
			Level:  "ok",
			Title:  "Focused",
			Detail: fmt.Sprintf("No deductions in the last minute. Score %d/100.", sc.ConcentrationScore),
			Value:  &v,
		})
	}

	return sortHints(hints)
}

func sortHints(hints []DiagnosticHint) []DiagnosticHint {
	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
