package tooltip

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// BoxRenderer draws the tooltip as a bordered box on a writer. It is the
// renderer the CLI uses to preview hover results; a browser surface would
// supply its own Renderer.
type BoxRenderer struct {
	Out   io.Writer
	style lipgloss.Style
}

// NewBoxRenderer creates a renderer writing to out.
func NewBoxRenderer(out io.Writer) *BoxRenderer {
	return &BoxRenderer{
		Out: out,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),
	}
}

// Show renders the tooltip text in a box. The anchor point is reported
// alongside since a writer has no page geometry.
func (r *BoxRenderer) Show(text string, at Point) {
	fmt.Fprintf(r.Out, "%s\n(at %d,%d)\n", r.style.Render(text), at.X, at.Y)
}

// Hide is a no-op for a write-once surface.
func (r *BoxRenderer) Hide() {}
