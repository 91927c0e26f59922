package progress

import (
	"fmt"
	"strings"

	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

func (m Model) renderView() string {
	w := m.width
	if w < 40 {
		w = 40
	}

	var s strings.Builder
	s.WriteString(ui.TitleStyle().Render("  purewipe"))
	s.WriteString("\n")
	s.WriteString("  " + ui.Divider(w-4) + "\n\n")

	s.WriteString(fmt.Sprintf("  %s %s\n", m.spin.View(), ui.Truncate(m.status, w-8)))
	s.WriteString("  " + m.bar.ViewAs(float64(m.percent)/100) + "\n\n")

	for _, line := range m.logs {
		s.WriteString("  " + ui.MutedStyle().Render(ui.Truncate(line, w-4)) + "\n")
	}

	s.WriteString("\n")
	hints := "  q cancel"
	if m.warned > 0 {
		hints += "  " + ui.IconPipe + "  " + ui.WarningStyle().Render(fmt.Sprintf("%d warning(s)", m.warned))
	}
	s.WriteString(ui.HintBarStyle().Render(hints))
	return s.String()
}
