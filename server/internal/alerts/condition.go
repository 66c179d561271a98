package alerts

import (
	"strconv"
	"strings"

	"github.com/focusmonitor/focusmonitor/pkg/report"
)

// evalCondition evaluates "field op value" against a minute score.
//
//	concentration_score < 50
//	absence_ratio > 30
//	sleeping_deduction > 0
//
// It returns whether the rule fires and the value of the field. Conditions
// that cannot be parsed never fire.
func evalCondition(cond string, sc *report.ScoreRecord) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := numericField(field, sc)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

func numericField(field string, sc *report.ScoreRecord) (float64, bool) {
	switch field {
	case "concentration_score":
		return float64(sc.ConcentrationScore), true
	case "absence_ratio":
		return float64(sc.AbsenceRatio), true
	case "absence_deduction":
		return sc.Deductions.Absence, true
	case "looking_away_deduction":
		return sc.Deductions.LookingAway, true
	case "sleeping_deduction":
		return sc.Deductions.Sleeping, true
	case "unstable_deduction":
		return sc.Deductions.Unstable, true
	default:
		return 0, false
	}
}

func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
