// Package render writes inspection results as terminal text.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/deltascope/internal/insights"
)

const (
	timeLayout = "2006-01-02 15:04:05 MST"
	noValue    = "-"
)

// Renderer writes views to one output stream.
type Renderer struct {
	w   io.Writer
	loc *time.Location
	now func() time.Time

	heading  *color.Color
	label    *color.Color
	critical *color.Color
	warning  *color.Color
	info     *color.Color
	good     *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor forces color on or off. By default fatih/color decides from the
// terminal and NO_COLOR.
func WithColor(enabled bool) Option {
	return func(r *Renderer) {
		for _, c := range r.palette() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithLocation sets the zone timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock sets the reference time for relative ages.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:        w,
		loc:      time.Local,
		now:      time.Now,
		heading:  color.New(color.Bold, color.FgCyan),
		label:    color.New(color.Bold),
		critical: color.New(color.FgRed, color.Bold),
		warning:  color.New(color.FgYellow),
		info:     color.New(color.FgBlue),
		good:     color.New(color.FgGreen),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Renderer) palette() []*color.Color {
	return []*color.Color{r.heading, r.label, r.critical, r.warning, r.info, r.good}
}

func (r *Renderer) severityColor(s insights.Severity) *color.Color {
	switch s {
	case insights.SeverityCritical:
		return r.critical
	case insights.SeverityWarning:
		return r.warning
	case insights.SeverityGood:
		return r.good
	default:
		return r.info
	}
}

func (r *Renderer) section(title string) {
	fmt.Fprintf(r.w, "\n%s\n", r.heading.Sprint(title))
}

func (r *Renderer) field(name string, value any) {
	fmt.Fprintf(r.w, "  %s %v\n", r.label.Sprintf("%-22s", name+":"), value)
}

func (r *Renderer) timestamp(t time.Time) string {
	if t.IsZero() {
		return noValue
	}

	return fmt.Sprintf("%s (%s)", t.In(r.loc).Format(timeLayout), humanize.RelTime(t, r.now(), "ago", "from now"))
}

func (r *Renderer) optionalTime(t *time.Time) string {
	if t == nil {
		return noValue
	}

	return r.timestamp(*t)
}

// newTable returns a borderless light table in the style used by every view.
func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func (r *Renderer) table(tbl table.Writer) {
	fmt.Fprintln(r.w, tbl.Render())
}

func bytesOf(n int64) string {
	if n < 0 {
		return noValue
	}

	return humanize.IBytes(uint64(n))
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return noValue
	}

	return strings.Join(items, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
