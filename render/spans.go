package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/query"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" and "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Options controls rendering.
type Options struct {
	Format Format
	// Color enables ANSI colors in text output.
	Color bool
	// Path labels the document in headers and JSON output.
	Path string
}

// Position is a 1-based line and byte column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SpanRecord is one span as shown to users.
type SpanRecord struct {
	Range    query.Range `json:"range"`
	Start    Position    `json:"start"`
	Tag      string      `json:"tag"`
	Language string      `json:"language,omitempty"`
	Depth    int         `json:"depth,omitempty"`
	Text     string      `json:"text"`
}

type spanDocument struct {
	Path        string            `json:"path,omitempty"`
	Language    string            `json:"language"`
	Spans       []SpanRecord      `json:"spans"`
	Layers      []highlight.Layer `json:"layers,omitempty"`
	Diagnostics query.Diagnostics `json:"diagnostics,omitempty"`
}

// lineIndex maps byte offsets to positions.
type lineIndex []int

func newLineIndex(source []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range source {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (idx lineIndex) position(offset uint32) Position {
	line := sort.Search(len(idx), func(i int) bool { return idx[i] > int(offset) }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line + 1, Column: int(offset) - idx[line] + 1}
}

// Records converts spans into user-facing records.
func Records(source []byte, spans []highlight.Span) []SpanRecord {
	idx := newLineIndex(source)
	out := make([]SpanRecord, 0, len(spans))
	for _, s := range spans {
		text := ""
		if int(s.Range.End) <= len(source) && s.Range.Start <= s.Range.End {
			text = string(source[s.Range.Start:s.Range.End])
		}
		out = append(out, SpanRecord{
			Range:    s.Range,
			Start:    idx.position(s.Range.Start),
			Tag:      s.Tag,
			Language: s.Language,
			Depth:    s.Depth,
			Text:     text,
		})
	}
	return out
}

// Spans writes the spans of res. The text form is one span per line:
// "line:col tag "text"" with the layer language appended for injected spans.
func Spans(w io.Writer, source []byte, res *highlight.Result, opts Options) error {
	records := Records(source, res.Spans)
	if opts.Format == FormatJSON {
		return writeJSON(w, spanDocument{
			Path:        opts.Path,
			Language:    res.Language,
			Spans:       records,
			Layers:      res.Layers,
			Diagnostics: res.Diagnostics,
		})
	}

	if opts.Path != "" {
		fmt.Fprintf(w, "%s\n", paint(opts.Color, opts.Path, color.FgCyan, color.Bold))
	}
	for _, r := range records {
		tag := paint(opts.Color, r.Tag, tagAttributes(r.Tag)...)
		if r.Depth > 0 {
			fmt.Fprintf(w, "%d:%d\t%s\t%q\t[%s]\n", r.Start.Line, r.Start.Column, tag, r.Text, r.Language)
			continue
		}
		fmt.Fprintf(w, "%d:%d\t%s\t%q\n", r.Start.Line, r.Start.Column, tag, r.Text)
	}
	return nil
}

// Golden renders spans in the uncolored text form used for golden files.
func Golden(source []byte, res *highlight.Result) string {
	var b strings.Builder
	_ = Spans(&b, source, res, Options{Format: FormatText})
	return b.String()
}

// Diagnostics writes one diagnostic per line, or a JSON array.
func Diagnostics(w io.Writer, diags query.Diagnostics, opts Options) error {
	if opts.Format == FormatJSON {
		if diags == nil {
			diags = query.Diagnostics{}
		}
		return writeJSON(w, diags)
	}
	for _, d := range diags {
		fmt.Fprintln(w, paint(opts.Color, d.Error(), severityAttributes(d.Severity)...))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// tagStyles colors a tag by its first component.
var tagStyles = map[string][]color.Attribute{
	"keyword":     {color.FgMagenta, color.Bold},
	"function":    {color.FgBlue},
	"method":      {color.FgBlue},
	"type":        {color.FgYellow},
	"string":      {color.FgGreen},
	"number":      {color.FgHiRed},
	"constant":    {color.FgHiRed},
	"comment":     {color.FgHiBlack},
	"variable":    {color.FgWhite},
	"property":    {color.FgCyan},
	"tag":         {color.FgRed},
	"attribute":   {color.FgYellow},
	"operator":    {color.FgHiWhite},
	"punctuation": {color.FgHiBlack},
}

func tagAttributes(tag string) []color.Attribute {
	head, _, _ := strings.Cut(tag, ".")
	return tagStyles[head]
}

func severityAttributes(s query.Severity) []color.Attribute {
	switch s {
	case query.SeverityWarning:
		return []color.Attribute{color.FgHiYellow, color.Bold}
	default:
		return []color.Attribute{color.FgRed, color.Bold}
	}
}

// paint colors s when enabled, regardless of whether the output is a
// terminal.
func paint(enabled bool, s string, attrs ...color.Attribute) string {
	if !enabled || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}
