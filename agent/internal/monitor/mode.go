package monitor

// Mode is the pipeline mode driven by each tick.
type Mode int

const (
	// Calibrating feeds samples to the calibrator.
	Calibrating Mode = iota
	// Recording feeds samples to the second aggregator and minute scorer.
	Recording
)

func (m Mode) String() string {
	switch m {
	case Calibrating:
		return "calibrating"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

type event int

const (
	// evRecalibrate is an external request to recalibrate.
	evRecalibrate event = iota
	// evCalibrated fires once thresholds have been installed.
	evCalibrated
)

// transition is the only place the mode changes.
func transition(m Mode, ev event) Mode {
	switch ev {
	case evRecalibrate:
		return Calibrating
	case evCalibrated:
		return Recording
	}
	return m
}
