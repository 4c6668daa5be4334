// Package ui renders user facing terminal output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

var (
	// Out receives regular output; errors always go to stderr.
	Out io.Writer = os.Stdout

	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// DisableColor turns off styling, e.g. when output is piped.
func DisableColor() {
	color.NoColor = true
	pterm.DisableColor()
}

// Interactive reports whether stderr is a terminal that can show progress bars and prompts.
func Interactive() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func terminalWidth() int {
	if w := pterm.GetTerminalWidth(); w > 0 {
		return w
	}
	return 80
}

// PrintHeader prints a boxed title.
func PrintHeader(title string, subtitle string) {
	header := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), SecondaryStyle.Render(subtitle)))
	fmt.Fprintln(Out, header)
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	fmt.Fprintln(Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintStep prints a step indicator
func PrintStep(step int, total int, message string) {
	fmt.Fprintf(Out, "%s %s\n", SecondaryStyle.Render(fmt.Sprintf("[%d/%d]", step, total)), message)
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(Out).WithData(data).Render()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(Out, "  • %s\n", item)
	}
}

// RenderMarkdown renders markdown for the terminal.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return "", err
	}
	return r.Render(content)
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	out, err := RenderMarkdown(content)
	if err != nil {
		return err
	}
	fmt.Fprint(Out, out)
	return nil
}

// PrintSQL prints SQL with comment lines dimmed and withheld statements highlighted.
func PrintSQL(sql string) {
	for _, line := range strings.Split(strings.TrimRight(sql, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "-- WARNING:"), strings.HasPrefix(line, "-- WITHHELD"):
			fmt.Fprintln(Out, WarningStyle.Render(line))
		case strings.HasPrefix(line, "--"):
			fmt.Fprintln(Out, SecondaryStyle.Render(line))
		default:
			fmt.Fprintln(Out, line)
		}
	}
}

// Progress is a percentage bar fed by poll results.
type Progress struct {
	bar     *pterm.ProgressbarPrinter
	current int
}

// NewProgress starts a 0-100 progress bar.
func NewProgress(title string) (*Progress, error) {
	bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle(title).WithWriter(os.Stderr).Start()
	if err != nil {
		return nil, err
	}
	return &Progress{bar: bar}, nil
}

// Update moves the bar to percent. Moving backwards is ignored.
func (p *Progress) Update(phase string, percent int) {
	if phase != "" {
		p.bar.UpdateTitle(phase)
	}
	if percent > p.current {
		p.bar.Add(percent - p.current)
		p.current = percent
	}
}

// Stop removes the bar.
func (p *Progress) Stop() {
	_, _ = p.bar.Stop()
}

// Spinner starts a spinner with message.
func Spinner(message string) (*pterm.SpinnerPrinter, error) {
	return pterm.DefaultSpinner.WithWriter(os.Stderr).Start(message)
}

// Printers returns fatih/color printers for short inline labels.
func Printers() map[string]*color.Color {
	return map[string]*color.Color{
		"added":    color.New(color.FgGreen, color.Bold),
		"removed":  color.New(color.FgRed, color.Bold),
		"modified": color.New(color.FgYellow, color.Bold),
		"info":     color.New(color.FgCyan),
	}
}

// StatusLabel colors a change status.
func StatusLabel(status string) string {
	if c, ok := Printers()[status]; ok {
		return c.Sprint(status)
	}
	return status
}
