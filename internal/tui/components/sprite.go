package components

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/sidegen/internal/imageio"
)

const halfBlock = "▀"

// Sprite renders an imageio.Image with half-block characters: each cell
// shows two vertically stacked pixels. Step samples every Step-th pixel, so
// Step 2 renders a 64×64 sprite in 32×16 cells.
type Sprite struct {
	Image *imageio.Image
	Step  int
}

// NewSprite creates a Sprite sampling every step-th pixel.
func NewSprite(img *imageio.Image, step int) Sprite {
	if step < 1 {
		step = 1
	}
	return Sprite{Image: img, Step: step}
}

// Size returns the rendered width and height in cells.
func (s Sprite) Size() (int, int) {
	n := imageio.Size / s.step()
	return n, (n + 1) / 2
}

// View returns the rendered sprite. A nil image renders an empty frame of
// the same size.
func (s Sprite) View() string {
	w, h := s.Size()
	if s.Image == nil {
		row := strings.Repeat(" ", w)
		rows := make([]string, h)
		for i := range rows {
			rows[i] = row
		}
		return strings.Join(rows, "\n")
	}

	step := s.step()
	var b strings.Builder
	for row := 0; row < h; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		top := row * 2 * step
		bottom := top + step
		for col := 0; col < w; col++ {
			x := col * step
			style := lipgloss.NewStyle()
			if c, ok := visible(s.Image.At(x, top)); ok {
				style = style.Foreground(c)
			}
			if bottom < imageio.Size {
				if c, ok := visible(s.Image.At(x, bottom)); ok {
					style = style.Background(c)
				}
			}
			b.WriteString(style.Render(halfBlock))
		}
	}
	return b.String()
}

func (s Sprite) step() int {
	if s.Step < 1 {
		return 1
	}
	return s.Step
}

// visible converts c to a terminal color; mostly transparent pixels are left
// uncolored.
func visible(c color.NRGBA) (lipgloss.Color, bool) {
	if c.A < 128 {
		return "", false
	}
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)), true
}
