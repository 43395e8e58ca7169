package highlight_test

import (
	"context"
	"fmt"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/internal/treetest"
	"github.com/oxhq/scopeq/query"
)

// wordParser splits documents on whitespace. In "host" a word starting with
// '<' is an embedded node; in "sub" every word is an identifier.
type wordParser struct{}

func (wordParser) Parse(ctx context.Context, language string, source []byte) (query.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if language != "host" && language != "sub" {
		return nil, fmt.Errorf("%w: %s", query.ErrUnknownLanguage, language)
	}
	doc := treetest.Named("document").At(0, uint32(len(source)))
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		kind := "identifier"
		if language == "host" {
			kind = "word"
			if source[start] == '<' {
				kind = "embedded"
			}
		}
		doc.Children = append(doc.Children, treetest.Leaf(kind, "").At(uint32(start), uint32(end)))
		start = -1
	}
	for i, r := range string(source) {
		if unicode.IsSpace(r) {
			flush(i)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(source))
	return treetest.NewCursor(treetest.Spans(doc)), nil
}

func newHighlighter(loader query.MapLoader, opts ...highlight.Option) *highlight.Highlighter {
	return highlight.New(wordParser{}, query.NewRegistry(loader), opts...)
}

func TestHighlightCombinedInjection(t *testing.T) {
	h := newHighlighter(query.MapLoader{
		"host/highlights": `(word) @word`,
		"host/injections": `((embedded) @injection.content (#set! injection.language "sub") (#set! injection.combined))`,
		"sub/highlights":  `(identifier) @sub.ident`,
	})
	res, err := h.Highlight(context.Background(), "host", []byte("aa <bb> cc <dd>"))
	require.NoError(t, err)

	assert.Equal(t, []tagged{
		{0, 2, "word"},
		{3, 7, "sub.ident"},
		{8, 10, "word"},
		{11, 15, "sub.ident"},
	}, tags(res.Spans))
	assert.Equal(t, 1, res.Spans[1].Depth)
	assert.Equal(t, "sub", res.Spans[1].Language)

	require.Len(t, res.Injections, 1)
	assert.Equal(t, []query.Range{{Start: 3, End: 7}, {Start: 11, End: 15}}, res.Injections[0].Ranges)

	require.Len(t, res.Layers, 2)
	assert.Equal(t, highlight.Layer{Language: "host", Depth: 0, Ranges: []query.Range{{Start: 0, End: 15}}}, res.Layers[0])
	assert.Equal(t, 1, res.Layers[1].Depth)
	assert.Empty(t, res.Diagnostics)
}

func TestHighlightHostSpansYieldToInjections(t *testing.T) {
	h := newHighlighter(query.MapLoader{
		"host/highlights": `(document) @text`,
		"host/injections": `((embedded) @injection.content (#set! injection.language "sub"))`,
		"sub/highlights":  `(identifier) @sub.ident`,
	})
	res, err := h.Highlight(context.Background(), "host", []byte("aa <bb> cc"))
	require.NoError(t, err)
	assert.Equal(t, []tagged{{0, 3, "text"}, {3, 7, "sub.ident"}, {7, 10, "text"}}, tags(res.Spans))
}

func TestHighlightInjectionDepthLimit(t *testing.T) {
	h := newHighlighter(query.MapLoader{
		"host/highlights": `(embedded) @embedded`,
		"host/injections": `((embedded) @injection.content (#set! injection.self))`,
	}, highlight.WithMaxInjectionDepth(2))
	res, err := h.Highlight(context.Background(), "host", []byte("aa <bb>"))
	require.NoError(t, err)

	require.Len(t, res.Layers, 3)
	assert.Equal(t, 2, res.Layers[2].Depth)
	assert.Equal(t, []query.Range{{Start: 3, End: 7}}, res.Layers[2].Ranges)

	depth := res.Diagnostics.OfKind(query.KindInjectionDepth)
	require.Len(t, depth, 1)
	assert.Equal(t, query.SeverityWarning, depth[0].Severity)

	require.Len(t, res.Spans, 1)
	assert.Equal(t, 2, res.Spans[0].Depth)
}

func TestHighlightUnknownInjectedLanguage(t *testing.T) {
	h := newHighlighter(query.MapLoader{
		"host/highlights": `(embedded) @embedded`,
		"host/injections": `((embedded) @injection.content (#set! injection.language "cobol"))`,
	})
	res, err := h.Highlight(context.Background(), "host", []byte("<x>"))
	require.NoError(t, err)
	assert.Equal(t, []tagged{{0, 3, "embedded"}}, tags(res.Spans))

	load := res.Diagnostics.OfKind(query.KindLoad)
	require.Len(t, load, 1)
	assert.Equal(t, "cobol", load[0].Language)
	assert.ErrorIs(t, load[0], query.ErrUnknownLanguage)
}

func TestHighlightUnknownHostLanguage(t *testing.T) {
	h := newHighlighter(query.MapLoader{})
	_, err := h.Highlight(context.Background(), "cobol", []byte("x"))
	assert.ErrorIs(t, err, query.ErrUnknownLanguage)
}

func TestHighlightWithoutQueries(t *testing.T) {
	h := newHighlighter(query.MapLoader{})
	res, err := h.Highlight(context.Background(), "host", []byte("aa bb"))
	require.NoError(t, err)
	assert.Empty(t, res.Spans)
	assert.Nil(t, res.Locals)
}

func TestHighlightCancelled(t *testing.T) {
	h := newHighlighter(query.MapLoader{"host/highlights": `(word) @word`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Highlight(ctx, "host", []byte("aa"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHighlightLocalsAtTopLevel(t *testing.T) {
	h := newHighlighter(query.MapLoader{
		"sub/locals":     `(identifier) @local.reference`,
		"sub/highlights": `(identifier) @variable`,
	})
	res, err := h.Highlight(context.Background(), "sub", []byte("a b"))
	require.NoError(t, err)
	require.NotNil(t, res.Locals)
	assert.Len(t, res.Locals.References, 2)
}

// strictParser reports every "?" in a document as a syntax error.
type strictParser struct{ wordParser }

func (strictParser) SyntaxErrors(_ context.Context, _ string, source []byte) ([]string, error) {
	var out []string
	for i, b := range source {
		if b == '?' {
			out = append(out, fmt.Sprintf("unexpected ? at %d", i))
		}
	}
	return out, nil
}

func TestHighlightReportsSyntaxErrors(t *testing.T) {
	loader := query.MapLoader{"host/highlights": "(word) @variable"}
	h := highlight.New(strictParser{}, query.NewRegistry(loader))

	res, err := h.Highlight(context.Background(), "host", []byte("a ? b"))
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, query.KindSourceSyntax, res.Diagnostics[0].Kind)
	assert.Equal(t, query.SeverityWarning, res.Diagnostics[0].Severity)
	assert.Equal(t, "unexpected ? at 2", res.Diagnostics[0].Message)
	assert.Len(t, res.Spans, 3, "syntax errors do not stop highlighting")

	res, err = h.Highlight(context.Background(), "host", []byte("a b"))
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}
