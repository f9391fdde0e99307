package subscription

import (
	"testing"

	"gorm.io/datatypes"
)

var order = []uint{10, 20, 30, 40}

func TestNormalizeCompleted(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []uint
	}{
		{"array form", `[10,20]`, []uint{10, 20}},
		{"array form out of order", `[30,10]`, []uint{10, 30}},
		{"unknown ids are dropped", `[10,99]`, []uint{10}},
		{"legacy count form", `2`, []uint{10, 20}},
		{"legacy count clamped to strategy size", `9`, []uint{10, 20, 30, 40}},
		{"legacy zero count", `0`, nil},
		{"empty array", `[]`, nil},
		{"empty value", ``, nil},
		{"null", `null`, nil},
		{"malformed", `{"oops":true}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCompleted(datatypes.JSON(tt.raw), order)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d completed videos, got %d (%v)", len(tt.want), len(got), got)
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Fatalf("expected video %d to be completed, got %v", id, got)
				}
			}
		})
	}
}

func TestMarshalCompletedPreservesStrategyOrder(t *testing.T) {
	completed := map[uint]bool{30: true, 10: true}
	got := string(MarshalCompleted(completed, order))
	if got != `[10,30]` {
		t.Fatalf("expected [10,30], got %s", got)
	}

	if string(MarshalCompleted(nil, order)) != `[]` {
		t.Fatalf("expected empty set to marshal as []")
	}
}

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      float64
	}{
		{"none", 0, 4, 0},
		{"half", 2, 4, 50},
		{"all", 4, 4, 100},
		{"third rounds to 2 decimals", 1, 3, 33.33},
		{"no videos", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completed := make(map[uint]bool)
			for i := 0; i < tt.completed; i++ {
				completed[uint(i+1)] = true
			}
			if got := ProgressPercentage(completed, tt.total); got != tt.want {
				t.Fatalf("expected %.2f, got %.2f", tt.want, got)
			}
		})
	}
}

func TestCurrentVideoID(t *testing.T) {
	if got := CurrentVideoID(map[uint]bool{}, order); got != 10 {
		t.Fatalf("expected first video, got %d", got)
	}
	if got := CurrentVideoID(map[uint]bool{10: true, 20: true}, order); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	all := map[uint]bool{10: true, 20: true, 30: true, 40: true}
	if got := CurrentVideoID(all, order); got != 0 {
		t.Fatalf("expected 0 when all complete, got %d", got)
	}
}

func TestCanAccessVideo(t *testing.T) {
	none := map[uint]bool{}

	if !CanAccessVideo(none, order, 10) {
		t.Fatal("first video must always be accessible")
	}
	if CanAccessVideo(none, order, 20) {
		t.Fatal("second video must be locked before the first is complete")
	}
	if !CanAccessVideo(map[uint]bool{10: true}, order, 20) {
		t.Fatal("second video must unlock after the first")
	}
	if CanAccessVideo(map[uint]bool{10: true}, order, 30) {
		t.Fatal("third video must stay locked with only the first complete")
	}
	if CanAccessVideo(none, order, 99) {
		t.Fatal("videos outside the strategy are never accessible")
	}
	// Completed videos stay replayable.
	if !CanAccessVideo(map[uint]bool{10: true, 20: true}, order, 10) {
		t.Fatal("completed videos must remain accessible")
	}
}
