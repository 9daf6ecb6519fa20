package lockin

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

const (
	testSampleRate = 1_000
	testPeriod     = 50 // 20Hz reference at 1kHz
	testBurst      = 250
)

func newTestLockin(t *testing.T) *Lockin {
	t.Helper()

	l := New()
	err := l.SetConfig(Config{
		OutputPeriod:    250 * time.Millisecond,
		IntegrationTime: time.Second,
		MonitorTime:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to configure lockin: %v", err)
	}
	return l
}

// bursts splits a phase-locked signal into consecutive bursts
func bursts(count int, amplitude float64) [][]SamplePair {
	n := count * testBurst
	pairs := zipPairs(
		lockedCosine(n, testPeriod, 1_000_000, amplitude),
		squareWave(n, testPeriod, 100, 200),
	)

	var out [][]SamplePair
	for i := 0; i < count; i++ {
		out = append(out, pairs[i*testBurst:(i+1)*testBurst])
	}
	return out
}

func TestLockin_StartTwice(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)

	if err := l.Start(src); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	before := l.Config()

	if err := l.Start(newFakeSource(testSampleRate)); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("Expected ErrAlreadyActive, got %v", err)
	}
	if l.Config() != before {
		t.Errorf("Configuration changed by a rejected start: %+v", l.Config())
	}
	if src.started != 1 {
		t.Errorf("Expected the source started once, got %d", src.started)
	}
	if !l.IsActive() {
		t.Error("Lockin should still be active")
	}
}

func TestLockin_SettersRejectedWhileActive(t *testing.T) {
	l := newTestLockin(t)
	if err := l.Start(newFakeSource(testSampleRate)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := l.Config()

	setters := []struct {
		name string
		fn   func() error
	}{
		{"output period", func() error { return l.SetOutputPeriod(time.Second) }},
		{"integration time", func() error { return l.SetIntegrationTime(10 * time.Second) }},
		{"monitor time", func() error { return l.SetMonitorTime(time.Second) }},
		{"phase", func() error { return l.SetPhase(1) }},
		{"config", func() error { return l.SetConfig(DefaultConfig()) }},
	}

	for _, s := range setters {
		t.Run(s.name, func(t *testing.T) {
			if err := s.fn(); !errors.Is(err, ErrAlreadyActive) {
				t.Errorf("Expected ErrAlreadyActive, got %v", err)
			}
			if l.Config() != before {
				t.Errorf("Expected %+v, got %+v", before, l.Config())
			}
		})
	}
}

func TestLockin_SetterValidation(t *testing.T) {
	l := New()

	testCases := []struct {
		name string
		fn   func() error
	}{
		{"zero output period", func() error { return l.SetOutputPeriod(0) }},
		{"negative integration time", func() error { return l.SetIntegrationTime(-time.Second) }},
		{"zero monitor time", func() error { return l.SetMonitorTime(0) }},
		{"NaN phase", func() error { return l.SetPhase(math.NaN()) }},
		{"infinite phase", func() error { return l.SetPhase(math.Inf(1)) }},
		{"partial config", func() error { return l.SetConfig(Config{OutputPeriod: time.Second}) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if l.Config() != DefaultConfig() {
				t.Errorf("Rejected value was stored: %+v", l.Config())
			}
		})
	}

	if err := l.SetPhase(-42); err != nil {
		t.Errorf("Any finite phase should be accepted: %v", err)
	}
}

func TestLockin_StartRejectsFormat(t *testing.T) {
	testCases := []struct {
		name   string
		format Format
	}{
		{"invalid", Format{}},
		{"signed", Format{SampleRate: 48_000, Channels: 2, SampleSize: 32, SampleType: SampleTypeSignedInt, Codec: CodecPCM}},
		{"mono", Format{SampleRate: 48_000, Channels: 1, SampleSize: 32, SampleType: SampleTypeUnsignedInt, Codec: CodecPCM}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := New()
			src := &fakeSource{format: tc.format}

			err := l.Start(src)
			if !errors.Is(err, ErrFormatUnsupported) {
				t.Fatalf("Expected ErrFormatUnsupported, got %v", err)
			}
			if l.IsActive() || src.started != 0 {
				t.Error("Rejected start must not start the source")
			}
		})
	}
}

func TestLockin_StartRejectsShortIntegration(t *testing.T) {
	l := New()
	if err := l.SetIntegrationTime(time.Microsecond); err != nil {
		t.Fatalf("SetIntegrationTime failed: %v", err)
	}

	if err := l.Start(newFakeSource(100)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if l.IsActive() {
		t.Error("Lockin should stay inactive")
	}
}

func TestLockin_StartSourceError(t *testing.T) {
	l := New()
	src := newFakeSource(testSampleRate)
	src.startErr = errors.New("device busy")

	if err := l.Start(src); err == nil || !errors.Is(err, src.startErr) {
		t.Fatalf("Expected the source error, got %v", err)
	}
	if l.IsActive() {
		t.Error("Lockin should stay inactive")
	}
}

func TestLockin_Stop(t *testing.T) {
	l := newTestLockin(t)

	if err := l.Stop(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Expected ErrNotActive when stopping an inactive lockin, got %v", err)
	}

	src := newFakeSource(testSampleRate)
	if err := l.Start(src); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if src.stopped != 1 || l.IsActive() {
		t.Errorf("Expected the source stopped and the lockin inactive")
	}
	if _, err := l.Notify(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive after stop, got %v", err)
	}
	if err := l.SetPhase(1); err != nil {
		t.Errorf("Setters should work again after stop: %v", err)
	}
}

func TestLockin_StopSourceError(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	src.stopErr = errors.New("device gone")

	_ = l.Start(src)
	if err := l.Stop(); !errors.Is(err, src.stopErr) {
		t.Errorf("Expected the source error, got %v", err)
	}
	if l.IsActive() {
		t.Error("Lockin should be inactive even when the source fails to stop")
	}
}

func TestLockin_ColdStartGating(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	if err := l.Start(src); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 1s at 1kHz needs four bursts of 250 samples
	for i, burst := range bursts(5, 1000) {
		src.feed(burst)
		result, err := l.Notify()

		if i < 3 {
			if !errors.Is(err, ErrPriming) {
				t.Fatalf("Cycle %d: expected ErrPriming, got %v", i+1, err)
			}
			continue
		}

		if err != nil {
			t.Fatalf("Cycle %d: expected a result, got %v", i+1, err)
		}
		if result.Samples == 0 || result.Samples > 1000 {
			t.Errorf("Cycle %d: unexpected valid sample count %d", i+1, result.Samples)
		}
	}

	stats := l.Stats()
	if stats.Cycles != 5 || stats.Results != 2 || stats.Samples != 5*testBurst {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestLockin_ResultMatchesPhaseLockedSignal(t *testing.T) {
	const amplitude = 10_000.0

	l := newTestLockin(t)
	phase := math.Pi / 3
	_ = l.SetPhase(phase)

	src := newFakeSource(testSampleRate)
	_ = l.Start(src)

	var result Result
	var err error
	for _, burst := range bursts(4, amplitude) {
		src.feed(burst)
		result, err = l.Notify()
	}
	if err != nil {
		t.Fatalf("Expected a result, got %v", err)
	}

	wantX := amplitude / 2 * math.Sin(phase)
	wantY := amplitude / 2 * math.Cos(phase)
	if !almostEqual(result.X, wantX, 1) || !almostEqual(result.Y, wantY, 1) {
		t.Errorf("Expected (%0.2f, %0.2f), got (%0.2f, %0.2f)", wantX, wantY, result.X, result.Y)
	}
	if !almostEqual(result.R(), amplitude/2, 1) {
		t.Errorf("Expected magnitude %0.2f, got %0.2f", amplitude/2, result.R())
	}

	autoPhase, err := l.AutoPhase()
	if err != nil {
		t.Fatalf("AutoPhase failed: %v", err)
	}
	if want := phase + math.Atan2(result.Y, result.X); !almostEqual(autoPhase, want, floatTolerance) {
		t.Errorf("Expected auto phase %f, got %f", want, autoPhase)
	}

	if f := l.ReferenceFrequency(); !almostEqual(f, testSampleRate/testPeriod, floatTolerance) {
		t.Errorf("Expected reference frequency %dHz, got %f", testSampleRate/testPeriod, f)
	}
}

func TestLockin_TimeCursor(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	_ = l.Start(src)

	// every cycle advances the cursor, whether or not it yields a result
	var noData, priming, results int

	all := bursts(8, 1000)
	for n := 1; n <= 12; n++ {
		if n <= len(all) && n%3 != 0 {
			src.feed(all[n-1])
		}

		result, err := l.Notify()
		switch {
		case errors.Is(err, ErrNoData):
			noData++
		case errors.Is(err, ErrPriming):
			priming++
		case err == nil:
			results++
		}

		want := -0.5 + float64(n)*0.25
		if !almostEqual(result.Time, want, 1e-12) {
			t.Errorf("Cycle %d (%v): expected time %f, got %f", n, err, want, result.Time)
		}
	}

	if noData == 0 || priming == 0 || results == 0 {
		t.Errorf("Expected no-data, priming and result cycles, got %d, %d and %d", noData, priming, results)
	}
}

func TestLockin_NoDataKeepsMonitor(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	_ = l.Start(src)

	src.feed(bursts(1, 1000)[0])
	if _, err := l.Notify(); !errors.Is(err, ErrPriming) {
		t.Fatalf("Expected ErrPriming, got %v", err)
	}

	before := l.MonitorData()
	if len(before) != 20 {
		t.Fatalf("Expected a 20 sample monitor (20ms at 1kHz), got %d", len(before))
	}

	if _, err := l.Notify(); !errors.Is(err, ErrNoData) {
		t.Fatalf("Expected ErrNoData, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if after := l.MonitorData(); !slices.Equal(before, after) {
			t.Fatalf("Read %d: monitor changed without new data", i)
		}
	}
	if l.Stats().NoData != 1 {
		t.Errorf("Expected one no-data cycle, got %d", l.Stats().NoData)
	}
}

func TestLockin_NoLock(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	_ = l.Start(src)

	flat := make([]uint32, testBurst)
	for i := range flat {
		flat[i] = 500
	}

	var err error
	for i := 0; i < 4; i++ {
		src.feed(zipPairs(flat, flat))
		_, err = l.Notify()
	}

	if !errors.Is(err, ErrNoLock) {
		t.Fatalf("Expected ErrNoLock without reference edges, got %v", err)
	}
	if l.Stats().NoLock != 1 {
		t.Errorf("Expected one no-lock cycle, got %d", l.Stats().NoLock)
	}
	if len(l.MonitorData()) != 0 {
		t.Errorf("Monitor should be empty without valid samples")
	}
}

func TestLockin_AutoPhaseInactive(t *testing.T) {
	phase, err := New().AutoPhase()
	if !errors.Is(err, ErrNotActive) || phase != 0 {
		t.Errorf("Expected (0, ErrNotActive), got (%f, %v)", phase, err)
	}
}

func TestLockin_RestartResetsSession(t *testing.T) {
	l := newTestLockin(t)
	src := newFakeSource(testSampleRate)
	_ = l.Start(src)

	for _, burst := range bursts(4, 1000) {
		src.feed(burst)
		_, _ = l.Notify()
	}
	_ = l.Stop()

	src = newFakeSource(testSampleRate)
	if err := l.Start(src); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if l.Stats() != (Stats{}) {
		t.Errorf("Stats should reset on start: %+v", l.Stats())
	}
	if len(l.MonitorData()) != 0 {
		t.Error("Monitor should reset on start")
	}

	src.feed(bursts(1, 1000)[0])
	if _, err := l.Notify(); !errors.Is(err, ErrPriming) {
		t.Errorf("Expected a fresh window after restart, got %v", err)
	}
}

func TestResult_Polar(t *testing.T) {
	r := Result{X: 3, Y: 4}
	if r.R() != 5 {
		t.Errorf("Expected magnitude 5, got %f", r.R())
	}
	if !almostEqual(r.Theta(), math.Atan2(4, 3), floatTolerance) {
		t.Errorf("Unexpected theta %f", r.Theta())
	}
}
