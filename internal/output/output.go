// Package output provides formatted terminal output for board commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/eugenetaranov/t2/internal/wifi"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds plan execution statistics for output.
type Stats interface {
	GetOK() int
	GetChanged() int
	GetFailed() int
	GetSkipped() int
	GetDuration() time.Duration
}

// Output handles formatted output. It is safe for concurrent use.
type Output struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler. Color is disabled when w is a file
// that is not a terminal.
func New(w io.Writer) *Output {
	useColor := true
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Output{
		w:        w,
		useColor: useColor,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// Board prints the banner naming the board a command runs against.
func (o *Output) Board(target string) {
	o.printf("\n%s %s\n", o.color(colorBold, "BOARD"), target)
}

// PlanStart prints the plan start banner.
func (o *Output) PlanStart(path string) {
	o.printf("\n%s %s\n", o.color(colorBold, "PLAN"), path)
	if o.debug {
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// PlanEnd prints the plan summary.
func (o *Output) PlanEnd(stats Stats) {
	ok := o.color(colorGreen, fmt.Sprintf("ok=%d", stats.GetOK()))
	changed := o.color(colorYellow, fmt.Sprintf("changed=%d", stats.GetChanged()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))
	skipped := o.color(colorCyan, fmt.Sprintf("skipped=%d", stats.GetSkipped()))
	took := o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds()))

	o.printf("\n%s %s %s %s %s %s\n", o.color(colorBold, "RECAP"), ok, changed, failed, skipped, took)
}

// status maps a step status to its indicator, color and label.
func status(s string) (indicator, color, label string) {
	switch {
	case strings.HasPrefix(s, "ok"):
		return "✓", colorGreen, "ok"
	case strings.HasPrefix(s, "changed"):
		return "✓", colorYellow, "changed"
	case strings.HasPrefix(s, "skipped"):
		return "○", colorCyan, "skipped"
	case strings.HasPrefix(s, "failed"):
		return "✗", colorRed, "FAILED"
	default:
		return "?", colorGray, s
	}
}

// StepResult prints a step result in a single line.
// Format: [indicator] name
func (o *Output) StepResult(name, stepStatus, message string) {
	indicator, c, _ := status(stepStatus)

	o.printf("  %s %s\n", o.color(c, indicator), name)

	if o.debug && message != "" {
		o.printf("    %s %s\n", o.color(colorGray, "→"), message)
	}
}

// StepResultDetailed prints a step result with its kind and board.
// Captured stdout and stderr in data are shown in debug mode.
func (o *Output) StepResultDetailed(name, kind, board, stepStatus, message string, data map[string]any) {
	indicator, c, label := status(stepStatus)

	kindStr := ""
	if kind != "" {
		kindStr = o.color(colorGray, fmt.Sprintf("[%s] ", kind))
	}

	o.printf("  %s %s%s %s %s\n",
		o.color(c, indicator),
		kindStr,
		name,
		o.color(colorGray, fmt.Sprintf("(%s)", board)),
		o.color(c, label))

	if !o.debug {
		return
	}
	if message != "" {
		o.printf("      %s %s\n", o.color(colorGray, "msg:"), message)
	}
	for _, k := range []string{"stdout", "stderr"} {
		s, ok := data[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		o.printf("      %s\n", o.color(colorGray, k+":"))
		for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
			o.printf("        %s\n", line)
		}
	}
}

// Networks prints scan results as a table in the given order.
func (o *Output) Networks(networks []wifi.Network) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(networks) == 0 {
		fmt.Fprintf(o.w, "%s No networks found.\n", o.color(colorBlue, "INFO"))
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SSID\tSIGNAL\tSECURITY")
	for _, n := range networks {
		security := "open"
		if n.Encryption != nil && n.Encryption.Enabled {
			security = n.Encryption.Description
		}
		fmt.Fprintf(tw, "%s\t%3.0f%%\t%s\n", n.SSID, n.SignalRatio()*100, security)
	}
	_ = tw.Flush()
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, args...)
}
