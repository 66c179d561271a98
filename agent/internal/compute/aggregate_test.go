package compute

import (
	"testing"
	"time"

	"github.com/focusmonitor/focusmonitor/agent/internal/source"
)

var testThresholds = Thresholds{EyeClosedness: 0.6, GazeYaw: 10, GazePitch: 10}

func face(yaw, pitch, eye, nx, ny float64) source.Sample {
	return source.Sample{
		Timestamp:     now,
		FaceDetected:  true,
		EyeClosedness: eye,
		GazeYawDeg:    yaw,
		GazePitchDeg:  pitch,
		NoseX:         nx,
		NoseY:         ny,
	}
}

// feedSecond adds samples and requires that they complete exactly one second.
func feedSecond(t *testing.T, a *Aggregator, at time.Time, samples ...source.Sample) SecondSummary {
	t.Helper()
	for i, s := range samples {
		sum, ok := a.Add(s, at)
		if i < len(samples)-1 {
			if ok {
				t.Fatalf("second completed early after %d samples", i+1)
			}
			continue
		}
		if !ok {
			t.Fatalf("second not completed after %d samples", len(samples))
		}
		return sum
	}
	t.Fatal("no samples")
	return SecondSummary{}
}

func repeat(s source.Sample, n int) []source.Sample {
	out := make([]source.Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestAggregator_GroupsFiveSamples(t *testing.T) {
	a := NewAggregator(testThresholds)
	for i := 0; i < SamplesPerSecond-1; i++ {
		if _, ok := a.Add(face(0, 0, 0, 0.5, 0.5), now); ok {
			t.Fatalf("Add #%d completed a second", i+1)
		}
	}
	if a.Pending() != SamplesPerSecond-1 {
		t.Errorf("Pending = %d, want %d", a.Pending(), SamplesPerSecond-1)
	}
	at := now.Add(time.Second)
	sum, ok := a.Add(face(0, 0, 0, 0.5, 0.5), at)
	if !ok {
		t.Fatal("fifth sample did not complete the second")
	}
	if !sum.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", sum.Timestamp, at)
	}
	if sum.Samples != SamplesPerSecond {
		t.Errorf("Samples = %d, want %d", sum.Samples, SamplesPerSecond)
	}
	if a.Pending() != 0 {
		t.Errorf("Pending after emit = %d, want 0", a.Pending())
	}
}

func TestAggregator_Classifies(t *testing.T) {
	a := NewAggregator(testThresholds)
	// The last sample has no face, so its measurements are ignored.
	sum := feedSecond(t, a, now,
		face(15, 0, 0.1, 0.5, 0.5),  // looking away by yaw
		face(0, -12, 0.1, 0.5, 0.5), // looking away by pitch
		face(0, 0, 0.7, 0.5, 0.5),   // sleeping
		face(-15, 0, 0.9, 0.5, 0.5), // both
		source.Sample{GazeYawDeg: 50, EyeClosedness: 1},
	)
	if sum.LookingAway != 3 || sum.Sleeping != 2 || sum.NoFace != 1 {
		t.Errorf("counts away=%d sleeping=%d noFace=%d, want 3/2/1",
			sum.LookingAway, sum.Sleeping, sum.NoFace)
	}
}

func TestAggregator_ThresholdsAreStrict(t *testing.T) {
	a := NewAggregator(testThresholds)
	sum := feedSecond(t, a, now, repeat(face(10, -10, 0.6, 0.5, 0.5), 5)...)
	if sum.LookingAway != 0 || sum.Sleeping != 0 {
		t.Errorf("values at threshold classified: away=%d sleeping=%d", sum.LookingAway, sum.Sleeping)
	}
}

func TestAggregator_CountsNeverExceedFive(t *testing.T) {
	a := NewAggregator(testThresholds)
	for i := 0; i < 20; i++ {
		sum, ok := a.Add(face(90, 90, 1, 0, 0), now)
		if !ok {
			continue
		}
		if sum.LookingAway > SamplesPerSecond || sum.Sleeping > SamplesPerSecond || sum.NoFace > SamplesPerSecond {
			t.Fatalf("count above %d: %+v", SamplesPerSecond, sum)
		}
	}
}

func TestAggregator_NoseStdEveryFifthSecond(t *testing.T) {
	a := NewAggregator(testThresholds)

	// Two face samples per second, x alternating 0.4/0.6 and y constant:
	// 10 points, std(x)=0.1, std(y)=0 -> (2*0.1 + 0)/3.
	second := []source.Sample{
		face(0, 0, 0, 0.4, 0.5),
		face(0, 0, 0, 0.6, 0.5),
		source.NoFace(now),
		source.NoFace(now),
		source.NoFace(now),
	}
	for i := 1; i <= 4; i++ {
		sum := feedSecond(t, a, now, second...)
		if sum.NoseStdAvg != 0 {
			t.Fatalf("second %d NoseStdAvg = %v, want 0 before first refresh", i, sum.NoseStdAvg)
		}
	}
	sum := feedSecond(t, a, now, second...)
	want := 2 * 0.1 / 3
	if !almostEqual(sum.NoseStdAvg, want, 1e-9) {
		t.Fatalf("fifth second NoseStdAvg = %v, want %v", sum.NoseStdAvg, want)
	}

	// The value is carried until the next refresh.
	for i := 6; i <= 9; i++ {
		sum := feedSecond(t, a, now, repeat(face(0, 0, 0, 0.5, 0.5), 5)...)
		if !almostEqual(sum.NoseStdAvg, want, 1e-9) {
			t.Fatalf("second %d NoseStdAvg = %v, want carried %v", i, sum.NoseStdAvg, want)
		}
	}
	// Tenth second refreshes from a still nose.
	sum = feedSecond(t, a, now, repeat(face(0, 0, 0, 0.5, 0.5), 5)...)
	if !almostEqual(sum.NoseStdAvg, 0, 1e-12) {
		t.Errorf("tenth second NoseStdAvg = %v, want 0", sum.NoseStdAvg)
	}
}

func TestAggregator_SparseNoseBufferCarriesPrevious(t *testing.T) {
	a := NewAggregator(testThresholds)

	moving := []source.Sample{
		face(0, 0, 0, 0.4, 0.5),
		face(0, 0, 0, 0.6, 0.5),
		face(0, 0, 0, 0.4, 0.5),
		face(0, 0, 0, 0.6, 0.5),
		face(0, 0, 0, 0.5, 0.5),
	}
	var first float64
	for i := 1; i <= 5; i++ {
		first = feedSecond(t, a, now, moving...).NoseStdAvg
	}
	if first == 0 {
		t.Fatal("expected a non-zero NoseStdAvg after five moving seconds")
	}

	// Only four face samples across the next five seconds.
	sparse := []source.Sample{face(0, 0, 0, 0.9, 0.9), source.NoFace(now), source.NoFace(now), source.NoFace(now), source.NoFace(now)}
	for i := 0; i < 4; i++ {
		feedSecond(t, a, now, sparse...)
	}
	got := feedSecond(t, a, now, repeat(source.NoFace(now), 5)...).NoseStdAvg
	if got != first {
		t.Errorf("NoseStdAvg = %v, want previous %v carried", got, first)
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := NewAggregator(testThresholds)
	moving := []source.Sample{
		face(0, 0, 0, 0.1, 0.5),
		face(0, 0, 0, 0.9, 0.5),
		face(0, 0, 0, 0.1, 0.5),
		face(0, 0, 0, 0.9, 0.5),
		face(0, 0, 0, 0.1, 0.5),
	}
	for i := 0; i < 5; i++ {
		feedSecond(t, a, now, moving...)
	}
	a.Add(moving[0], now)
	a.Add(moving[1], now)

	a.Reset()
	if a.Pending() != 0 {
		t.Errorf("Pending after Reset = %d, want 0", a.Pending())
	}

	// Cadence restarts: four seconds carry 0, the fifth refreshes.
	for i := 1; i <= 4; i++ {
		if got := feedSecond(t, a, now, moving...).NoseStdAvg; got != 0 {
			t.Fatalf("second %d after Reset NoseStdAvg = %v, want 0", i, got)
		}
	}
	if got := feedSecond(t, a, now, moving...).NoseStdAvg; got == 0 {
		t.Error("fifth second after Reset did not refresh NoseStdAvg")
	}
}

func TestStddev(t *testing.T) {
	if got := stddev(nil); got != 0 {
		t.Errorf("stddev(nil) = %v, want 0", got)
	}
	// Population std of {2,4,4,4,5,5,7,9} is 2.
	if got := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(got, 2, 1e-12) {
		t.Errorf("stddev = %v, want 2", got)
	}
}
