package engine

import (
	"sync"
	"testing"
	"time"
)

// Compile-time interface checks
var (
	_ TimeProvider = &MonotonicTimeProvider{}
	_ TimeProvider = &MockTimeProvider{}
)

// Test the real clock moves forward
func TestMonotonicTimeProvider(t *testing.T) {
	provider := NewMonotonicTimeProvider()

	t1 := provider.Now()
	time.Sleep(5 * time.Millisecond)
	t2 := provider.Now()

	if !t2.After(t1) {
		t.Errorf("Expected forward motion, got t1=%v t2=%v", t1, t2)
	}
}

// Test the mock clock only moves when told
func TestMockTimeProvider(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := NewMockTimeProvider(start)

	if now := mock.Now(); !now.Equal(start) {
		t.Errorf("Expected start time %v, got %v", start, now)
	}

	mock.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if now := mock.Now(); !now.Equal(want) {
		t.Errorf("Expected %v after advance, got %v", want, now)
	}

	reset := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.SetTime(reset)
	if now := mock.Now(); !now.Equal(reset) {
		t.Errorf("Expected %v after SetTime, got %v", reset, now)
	}
}

// Test concurrent advance and read keep the total consistent
func TestMockTimeProviderConcurrency(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := NewMockTimeProvider(start)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = mock.Now()
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				mock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	want := start.Add(250 * time.Millisecond)
	if now := mock.Now(); !now.Equal(want) {
		t.Errorf("Expected %v after concurrent advances, got %v", want, now)
	}
}

// Test the world profiles system runs against the configured clock
func TestMockClockDrivesProfiling(t *testing.T) {
	mock := NewMockTimeProvider(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewWorld(Config{Clock: mock})
	w.CreateEntity("probe")

	w.CreateSystem(SystemConfig{Name: "slow", Act: func(*Tick, Entity) {
		mock.Advance(3 * time.Millisecond)
	}})

	w.Update(time.Millisecond)

	stats, err := w.SystemStats("slow")
	if err != nil {
		t.Fatalf("SystemStats failed: %v", err)
	}
	if stats.AvgDuration != 3*time.Millisecond {
		t.Errorf("Expected 3ms measured, got %v", stats.AvgDuration)
	}
}
