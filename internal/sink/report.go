package sink

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jxucoder/llmproc/pkg/model"
)

// Tally counts successes and failures. Any mix is valid, including empty.
func Tally(outcomes []model.Outcome) model.Summary {
	s := model.Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Report prints the final totals to out and, when anything failed, the
// failure count and per-item errors to errOut.
func Report(out, errOut io.Writer, outcomes []model.Outcome) model.Summary {
	s := Tally(outcomes)

	title := lipgloss.NewRenderer(out).NewStyle().Bold(true)
	good := lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("2"))
	bad := lipgloss.NewRenderer(errOut).NewStyle().Foreground(lipgloss.Color("1"))

	fmt.Fprintln(out)
	fmt.Fprintln(out, title.Render("Final Results:"))
	fmt.Fprintln(out, good.Render(fmt.Sprintf("Successfully processed: %d/%d files", s.Succeeded, s.Total)))

	if s.Failed > 0 {
		fmt.Fprintln(errOut, bad.Render(fmt.Sprintf("Failed to process: %d files", s.Failed)))
		for _, o := range outcomes {
			if o.OK() {
				continue
			}
			fmt.Fprintf(errOut, "  %s (%d attempts): %v\n", o.Item.Source(), o.Attempts, o.Err)
		}
	}
	return s
}
