package progress

import (
	"testing"
	"time"
)

func TestMeter_Snapshot(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	m := NewMeterWithNow(func() time.Time { return clock })

	m.Start(1000)

	clock = base.Add(time.Second)
	m.Add(250)

	s := m.Snapshot()
	if s.BytesDone != 250 {
		t.Errorf("BytesDone = %d, want 250", s.BytesDone)
	}
	if s.Total != 1000 {
		t.Errorf("Total = %d, want 1000", s.Total)
	}
	if s.Percent != 25 {
		t.Errorf("Percent = %f, want 25", s.Percent)
	}
	if s.RateBps != 250 {
		t.Errorf("RateBps = %f, want 250 (first sample unsmoothed)", s.RateBps)
	}
	if s.ETA != 3*time.Second {
		t.Errorf("ETA = %v, want 3s", s.ETA)
	}
}

func TestMeter_RateSmoothing(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	m := NewMeterWithNow(func() time.Time { return clock })

	m.Start(10000)
	clock = base.Add(time.Second)
	m.Add(100) // rate 100
	clock = base.Add(2 * time.Second)
	m.Add(200) // inst 200, smoothed 0.2*200 + 0.8*100 = 120

	s := m.Snapshot()
	if s.RateBps != 120 {
		t.Errorf("RateBps = %f, want 120", s.RateBps)
	}
}

func TestMeter_AddIgnoresNonPositive(t *testing.T) {
	m := NewMeter()
	m.Start(10)
	m.Add(0)
	m.Add(-5)
	if got := m.Snapshot().BytesDone; got != 0 {
		t.Errorf("BytesDone = %d, want 0", got)
	}
}
