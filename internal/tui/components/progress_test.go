package components

import (
	"math"
	"strings"
	"testing"
)

func TestProgress_View(t *testing.T) {
	tests := []struct {
		name       string
		fraction   float64
		wantPrefix string
		wantSuffix string
	}{
		{"zero percent", 0, "□□□□□□□□", " 0%"},
		{"fifty percent", 0.5, "■■■■□□□□", " 50%"},
		{"hundred percent", 1, "■■■■■■■■", " 100%"},
		{"mean of three", 0.4, "■■■□□□□□", " 40%"},
		{"negative clamps to zero", -0.5, "□□□□□□□□", " 0%"},
		{"above one clamps", 1.7, "■■■■■■■■", " 100%"},
		{"NaN is zero", math.NaN(), "□□□□□□□□", " 0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewProgress(tt.fraction, 8).View()
			if !strings.HasPrefix(result, tt.wantPrefix) {
				t.Errorf("expected prefix %s, got: %s", tt.wantPrefix, result)
			}
			if !strings.HasSuffix(result, tt.wantSuffix) {
				t.Errorf("expected suffix %q, got: %s", tt.wantSuffix, result)
			}
		})
	}
}

func TestProgress_View_ZeroWidth(t *testing.T) {
	if result := NewProgress(0.5, 0).View(); result != "" {
		t.Errorf("expected empty string for zero width, got: %s", result)
	}
}

func TestProgress_View_BarLength(t *testing.T) {
	for _, f := range []float64{0, 0.13, 0.5, 0.99, 1} {
		result := NewProgress(f, 20).View()
		bar := strings.SplitN(result, " ", 2)[0]
		if n := len([]rune(bar)); n != 20 {
			t.Errorf("fraction %v: bar has %d cells, want 20", f, n)
		}
	}
}
