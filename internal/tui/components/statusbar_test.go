package components

import (
	"strings"
	"testing"
)

func TestStatusBar_Render(t *testing.T) {
	tests := []struct {
		name  string
		width int
		items []string
		want  []string
	}{
		{"single item", 50, []string{"q Quit"}, []string{"q Quit"}},
		{"generation keys", 80, []string{"1-4 Toggle source", "←→ Target", "Enter Generate"}, []string{"1-4 Toggle source", "←→ Target", "Enter Generate", "|"}},
		{"narrow width", 20, []string{"Esc Cancel", "q Quit"}, []string{"Esc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewStatusBar().Render(tt.width, tt.items)
			for _, w := range tt.want {
				if !strings.Contains(result, w) {
					t.Errorf("expected result to contain %q, got: %s", w, result)
				}
			}
		})
	}
}

func TestStatusBar_Render_EmptyItems(t *testing.T) {
	// Must not panic; styling may still produce padding.
	_ = NewStatusBar().Render(50, nil)
}

func TestStatusBar_Render_SeparatorFormat(t *testing.T) {
	result := NewStatusBar().Render(40, []string{"A", "B", "C"})
	if !strings.Contains(result, "A  |  B  |  C") {
		t.Errorf("expected items to be joined with '  |  ', got: %s", result)
	}
}
