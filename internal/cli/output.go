package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

// importPrinter renders a running import on a terminal.
type importPrinter struct {
	w        io.Writer
	progress domain.ImportProgress
}

func (p *importPrinter) observer() service.ImportObserver {
	return service.ObserverFuncs{
		Status: func(s domain.BulkImportStatus) {
			fmt.Fprintf(p.w, "%s %s\n", dimStyle.Render("status:"), titleStyle.Render(string(s)))
		},
		Progress: func(pr domain.ImportProgress) { p.progress = pr },
		Log:      func(line string) { fmt.Fprintln(p.w, p.styleLine(line)) },
	}
}

func (p *importPrinter) styleLine(line string) string {
	counter := ""
	if p.progress.Total > 0 {
		counter = dimStyle.Render(fmt.Sprintf("[%d/%d] ", p.progress.Done, p.progress.Total))
	}
	switch {
	case strings.HasPrefix(line, "uploaded: "):
		return counter + successStyle.Render(line)
	case strings.HasPrefix(line, "  ragflow sync failed"):
		return counter + warnStyle.Render(line)
	case strings.HasPrefix(line, "failed: "), strings.HasPrefix(line, "file not found"), strings.HasPrefix(line, "import aborted"):
		return counter + errorStyle.Render(line)
	}
	return dimStyle.Render(line)
}

func formatHeader(dir, api, kb string, files int, bytes int64) string {
	if kb == "" {
		kb = "(default)"
	}
	content := fmt.Sprintf("%s %s\n%s %s\n%s %s\n%s %d files, %s",
		dimStyle.Render("Directory:"), titleStyle.Render(dir),
		dimStyle.Render("API:"), api,
		dimStyle.Render("Knowledge base:"), kb,
		dimStyle.Render("Selection:"), files, humanize.Bytes(uint64(bytes)),
	)
	return boxStyle.Render(content)
}

func formatSummary(res *domain.BulkImportResult) string {
	elapsed := res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)
	lines := []string{
		fmt.Sprintf("%s %s", dimStyle.Render("Status:"), titleStyle.Render(string(res.Status))),
		fmt.Sprintf("%s %s", dimStyle.Render("Uploaded:"), successStyle.Render(fmt.Sprint(res.Succeeded))),
	}
	failed := fmt.Sprint(res.Failed)
	if res.Failed > 0 {
		failed = errorStyle.Render(failed)
	}
	lines = append(lines, fmt.Sprintf("%s %s", dimStyle.Render("Failed:"), failed))
	for _, row := range res.Rows {
		if row.Status == domain.ImportRowStatusFailed {
			lines = append(lines, errorStyle.Render(fmt.Sprintf("  #%d %s (%s): %s", row.Index, row.DisplayName, row.Filename, row.Error)))
		}
	}
	if elapsed > 0 {
		lines = append(lines, fmt.Sprintf("%s %s", dimStyle.Render("Elapsed:"), elapsed))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
