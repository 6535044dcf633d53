package components

import (
	"fmt"
	"math"
	"strings"
)

const (
	filledChar = "■"
	emptyChar  = "□"
)

// Progress renders a progress bar like: ■■■■□□□□ 50%
type Progress struct {
	Fraction float64 // in [0,1]; out-of-range values are clamped
	Width    int     // character width of the bar portion
}

// NewProgress creates a new Progress instance.
func NewProgress(fraction float64, width int) Progress {
	return Progress{
		Fraction: fraction,
		Width:    width,
	}
}

// View returns the rendered progress bar string.
func (p Progress) View() string {
	if p.Width <= 0 {
		return ""
	}

	f := p.Fraction
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}

	percent := int(f * 100)
	filled := int(f * float64(p.Width))

	bar := strings.Repeat(filledChar, filled) + strings.Repeat(emptyChar, p.Width-filled)

	return fmt.Sprintf("%s %d%%", bar, percent)
}
