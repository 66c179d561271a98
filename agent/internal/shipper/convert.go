package shipper

import (
	"time"

	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/pkg/report"
)

func secondReport(sessionID string, s compute.SecondSummary, sentAt time.Time) *report.Report {
	return &report.Report{
		SessionID: sessionID,
		Kind:      report.KindSecond,
		SentAt:    sentAt.UTC(),
		Second: &report.SecondRecord{
			Timestamp:   s.Timestamp.UTC(),
			Samples:     s.Samples,
			LookingAway: s.LookingAway,
			Sleeping:    s.Sleeping,
			NoFace:      s.NoFace,
			NoseStdAvg:  s.NoseStdAvg,
		},
	}
}

func scoreReport(sessionID string, r compute.ScoreResult, sentAt time.Time) *report.Report {
	return &report.Report{
		SessionID: sessionID,
		Kind:      report.KindScore,
		SentAt:    sentAt.UTC(),
		Score: &report.ScoreRecord{
			Timestamp:          r.Timestamp.UTC(),
			ConcentrationScore: r.ConcentrationScore,
			AbsenceRatio:       r.AbsenceRatio,
			Seconds:            r.Seconds,
			Deductions: report.Deductions{
				Absence:     r.Deductions.Absence,
				LookingAway: r.Deductions.LookingAway,
				Sleeping:    r.Deductions.Sleeping,
				Unstable:    r.Deductions.Unstable,
			},
		},
	}
}
