package report

import "time"

// Report kinds.
const (
	KindSecond = "second"
	KindScore  = "score"
)

// Report is the envelope sent by the agent for every summary and score.
type Report struct {
	SessionID string        `json:"session_id" validate:"required"`
	Kind      string        `json:"kind" validate:"oneof=second score"`
	SentAt    time.Time     `json:"sent_at"`
	Second    *SecondRecord `json:"second,omitempty" validate:"required_if=Kind second"`
	Score     *ScoreRecord  `json:"score,omitempty" validate:"required_if=Kind score"`
}

// SecondRecord is the wire form of one second of aggregated samples.
type SecondRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Samples     int       `json:"samples" validate:"gte=1,lte=5"`
	LookingAway int       `json:"looking_away_count" validate:"gte=0,ltefield=Samples"`
	Sleeping    int       `json:"sleeping_count" validate:"gte=0,ltefield=Samples"`
	NoFace      int       `json:"no_face_count" validate:"gte=0,ltefield=Samples"`
	NoseStdAvg  float64   `json:"nose_std_avg" validate:"gte=0"`
}

// ScoreRecord is the wire form of one minute's score.
type ScoreRecord struct {
	Timestamp          time.Time  `json:"timestamp"`
	ConcentrationScore int        `json:"concentration_score" validate:"gte=0,lte=100"`
	AbsenceRatio       int        `json:"absence_ratio" validate:"gte=0,lte=100"`
	Seconds            int        `json:"seconds" validate:"gte=0"`
	Deductions         Deductions `json:"deductions"`
}

// Deductions is the per-rule point breakdown behind a ScoreRecord.
type Deductions struct {
	Absence     float64 `json:"absence" validate:"gte=0"`
	LookingAway float64 `json:"looking_away" validate:"gte=0"`
	Sleeping    float64 `json:"sleeping" validate:"gte=0"`
	Unstable    float64 `json:"unstable" validate:"gte=0"`
}

// SendResponse acknowledges a Report.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
