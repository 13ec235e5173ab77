package service

import (
	"testing"
)

func TestScoreExamples(t *testing.T) {
	scorer := NewPerformanceScorer()

	tests := []struct {
		name    string
		load    float64
		memory  float64
		queries int
		errors  int
		want    float64
	}{
		{"within thresholds", 1000, 32, 10, 0, 4.0},
		{"load penalty only", 2000, 32, 10, 0, 3.5},
		{"load penalty doubles", 3000, 32, 10, 0, 3.0},
		{"all penalties", 5000, 96, 30, 2, 0.3},
		{"caps applied", 100000, 10000, 1000, 50, 0},
		{"light plugin", 500, 20, 4, 0, 4.0},
		{"negative inputs clamped", -100, -5, -1, -2, 4.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.ScoreValues(tt.load, tt.memory, tt.queries, tt.errors)
			if got != tt.want {
				t.Fatalf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreIsPerfectWithinThresholds(t *testing.T) {
	scorer := NewPerformanceScorer()

	for load := 0.0; load <= 1000; load += 125 {
		for mem := 0.0; mem <= 32; mem += 4 {
			for q := 0; q <= 10; q += 2 {
				if got := scorer.ScoreValues(load, mem, q, 0); got != MaxScore {
					t.Fatalf("score(%v, %v, %d, 0) = %v, want 4.0", load, mem, q, got)
				}
			}
		}
	}
}

func TestScoreBoundedAndMonotonic(t *testing.T) {
	scorer := NewPerformanceScorer()

	loads := []float64{0, 900, 1200, 2500, 4000, 6000, 9000}
	mems := []float64{0, 30, 40, 64, 96, 200}
	queries := []int{0, 9, 11, 20, 40}
	errs := []int{0, 1, 3, 5, 9}

	for _, l := range loads {
		for _, m := range mems {
			for _, q := range queries {
				for _, e := range errs {
					base := scorer.ScoreValues(l, m, q, e)
					if base < 0 || base > MaxScore {
						t.Fatalf("score out of range: %v", base)
					}
					if scorer.ScoreValues(l+500, m, q, e) > base {
						t.Fatalf("score increased with load time at (%v,%v,%d,%d)", l, m, q, e)
					}
					if scorer.ScoreValues(l, m+10, q, e) > base {
						t.Fatalf("score increased with memory at (%v,%v,%d,%d)", l, m, q, e)
					}
					if scorer.ScoreValues(l, m, q+5, e) > base {
						t.Fatalf("score increased with queries at (%v,%v,%d,%d)", l, m, q, e)
					}
					if scorer.ScoreValues(l, m, q, e+1) > base {
						t.Fatalf("score increased with errors at (%v,%v,%d,%d)", l, m, q, e)
					}
				}
			}
		}
	}
}

func TestScorerGrade(t *testing.T) {
	scorer := NewPerformanceScorer()
	if got := scorer.Grade(3.6); got != "excellent" {
		t.Fatalf("unexpected grade %s", got)
	}
	if got := scorer.Grade(1.0); got != "poor" {
		t.Fatalf("unexpected grade %s", got)
	}
}
