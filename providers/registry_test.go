package providers_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/providers"
	"github.com/oxhq/scopeq/providers/base"
	"github.com/oxhq/scopeq/providers/catalog"
	"github.com/oxhq/scopeq/providers/css"
	"github.com/oxhq/scopeq/providers/golang"
	"github.com/oxhq/scopeq/providers/html"
	"github.com/oxhq/scopeq/providers/javascript"
	"github.com/oxhq/scopeq/providers/php"
	"github.com/oxhq/scopeq/providers/python"
	"github.com/oxhq/scopeq/providers/typescript"
	"github.com/oxhq/scopeq/query"
)

func newRegistry() *providers.Registry {
	r := providers.NewRegistry()
	r.Register(golang.New())
	r.Register(javascript.New())
	r.Register(typescript.New())
	r.Register(python.New())
	r.Register(html.New())
	r.Register(css.New())
	r.Register(php.New())
	return r
}

func newHighlighter(r *providers.Registry) *highlight.Highlighter {
	queries := query.NewRegistry(r, query.WithGrammars(r.Grammar))
	return highlight.New(r, queries, highlight.WithLanguageNormalizer(catalog.Normalize))
}

// spanAt reports the tag of the span covering exactly the n-th occurrence
// of text in source.
func spanAt(res *highlight.Result, source, text string, n int) (highlight.Span, bool) {
	offset := -1
	for i := 0; i <= n; i++ {
		next := strings.Index(source[offset+1:], text)
		if next < 0 {
			return highlight.Span{}, false
		}
		offset += next + 1
	}
	for _, s := range res.Spans {
		if int(s.Range.Start) == offset && int(s.Range.End) == offset+len(text) {
			return s, true
		}
	}
	return highlight.Span{}, false
}

func TestBundledQueriesCompile(t *testing.T) {
	r := newRegistry()
	queries := query.NewRegistry(r, query.WithGrammars(r.Grammar))

	for _, lang := range r.Languages() {
		for _, concern := range []string{highlight.ConcernHighlights, highlight.ConcernLocals, highlight.ConcernInjections} {
			q, diags, err := queries.Query(lang, concern)
			if errors.Is(err, query.ErrNotFound) {
				continue
			}
			require.NoError(t, err, "%s/%s", lang, concern)
			assert.Empty(t, diags.Errors(), "%s/%s", lang, concern)
			for _, d := range diags.Warnings() {
				t.Logf("%s/%s: %v", lang, concern, d)
			}
			assert.NotZero(t, q.PatternCount(), "%s/%s", lang, concern)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	r := newRegistry()

	p, ok := r.Get("js")
	require.True(t, ok)
	assert.Equal(t, "javascript", p.Language())

	_, ok = r.Get("cobol")
	assert.False(t, ok)

	_, err := r.Parse(context.Background(), "cobol", []byte("x"))
	assert.ErrorIs(t, err, query.ErrUnknownLanguage)

	text, err := r.Load("ecma", highlight.ConcernHighlights)
	require.NoError(t, err, "bases embedded by a provider are served")
	assert.Contains(t, text, "@function")

	assert.Equal(t, []string{"css", "go", "html", "javascript", "php", "python", "typescript"}, r.Languages())
	assert.Len(t, r.List(), 7)
}

func TestRegistryQueryOverride(t *testing.T) {
	r := newRegistry()
	r.RegisterQueries(query.MapLoader{"go/highlights": "(comment) @comment"})

	text, err := r.Load("go", highlight.ConcernHighlights)
	require.NoError(t, err)
	assert.Equal(t, "(comment) @comment", text)
}

func TestHighlightGo(t *testing.T) {
	source := "package main\n\nfunc main() {\n\tx := 1\n\tprintln(x)\n}\n"
	res, err := newHighlighter(newRegistry()).Highlight(context.Background(), "go", []byte(source))
	require.NoError(t, err)

	cases := []struct {
		text string
		n    int
		tag  string
	}{
		{"package", 0, "keyword"},
		{"func", 0, "keyword"},
		{"main", 1, "function"},
		{"println", 0, "function.builtin"},
		{"1", 0, "number"},
	}
	for _, tc := range cases {
		s, ok := spanAt(res, source, tc.text, tc.n)
		if assert.True(t, ok, "no span for %q", tc.text) {
			assert.Equal(t, tc.tag, s.Tag, tc.text)
		}
	}
	require.NotNil(t, res.Locals)
	assert.NotEmpty(t, res.Locals.Definitions)
}

// A pattern does not match again below a node it matched, so the callee of
// a nested call falls through to the identifier pattern.
func TestHighlightGoNestedCall(t *testing.T) {
	source := "package main\n\nfunc main() {\n\tbar(baz(a))\n}\n"
	res, err := newHighlighter(newRegistry()).Highlight(context.Background(), "go", []byte(source))
	require.NoError(t, err)

	for _, tc := range []struct{ text, tag string }{
		{"bar", "function.call"},
		{"baz", "variable"},
	} {
		s, ok := spanAt(res, source, tc.text, 0)
		if assert.True(t, ok, "no span for %q", tc.text) {
			assert.Equal(t, tc.tag, s.Tag, tc.text)
		}
	}
}

func TestHighlightJavaScriptInheritsEcma(t *testing.T) {
	source := "function add(left, right) { return left + right; }\nconsole.log(add(1, 2));\n"
	res, err := newHighlighter(newRegistry()).Highlight(context.Background(), "javascript", []byte(source))
	require.NoError(t, err)

	cases := []struct {
		text string
		n    int
		tag  string
	}{
		{"add", 0, "function"},
		{"left", 0, "variable.parameter"},
		{"right", 1, "variable.parameter"},
		{"console", 0, "variable.builtin"},
		{"log", 0, "function.method.call"},
		{"return", 0, "keyword"},
	}
	for _, tc := range cases {
		s, ok := spanAt(res, source, tc.text, tc.n)
		if assert.True(t, ok, "no span for %q #%d", tc.text, tc.n) {
			assert.Equal(t, tc.tag, s.Tag, tc.text)
		}
	}
}

func TestHighlightHTMLInjections(t *testing.T) {
	source := "<style>p { color: red; }</style>\n<script>const x = 1;</script>\n"
	res, err := newHighlighter(newRegistry()).Highlight(context.Background(), "html", []byte(source))
	require.NoError(t, err)

	require.Len(t, res.Injections, 2)
	assert.Equal(t, "css", res.Injections[0].Language)
	assert.Equal(t, "javascript", res.Injections[1].Language)
	assert.Len(t, res.Layers, 3)

	s, ok := spanAt(res, source, "color", 0)
	require.True(t, ok)
	assert.Equal(t, "property", s.Tag)
	assert.Equal(t, "css", s.Language)
	assert.Equal(t, 1, s.Depth)

	s, ok = spanAt(res, source, "const", 0)
	require.True(t, ok)
	assert.Equal(t, "keyword", s.Tag)
	assert.Equal(t, "javascript", s.Language)

	s, ok = spanAt(res, source, "style", 0)
	require.True(t, ok)
	assert.Equal(t, "tag", s.Tag)
	assert.Equal(t, "html", s.Language)
}

func TestHighlightPHPCombinedHTML(t *testing.T) {
	source := "<p>a</p><?php echo 1; ?><b>c</b>"
	res, err := newHighlighter(newRegistry()).Highlight(context.Background(), "php", []byte(source))
	require.NoError(t, err)

	require.Len(t, res.Injections, 1)
	inj := res.Injections[0]
	assert.Equal(t, "html", inj.Language)
	assert.NotEmpty(t, inj.CombinationKey)
	assert.Len(t, inj.Ranges, 2)

	for _, tag := range []string{"p", "b"} {
		s, ok := spanAt(res, source, tag, 0)
		if assert.True(t, ok, "no span for <%s>", tag) {
			assert.Equal(t, "tag", s.Tag)
			assert.Equal(t, "html", s.Language)
		}
	}
}

func TestHighlightReportsSourceSyntaxErrors(t *testing.T) {
	h := newHighlighter(newRegistry())

	res, err := h.Highlight(context.Background(), "go", []byte("package main\n\nfunc main( {\n"))
	require.NoError(t, err)
	var syntax query.Diagnostics
	for _, d := range res.Diagnostics {
		if d.Kind == query.KindSourceSyntax {
			syntax = append(syntax, d)
		}
	}
	require.NotEmpty(t, syntax)
	assert.Equal(t, "go", syntax[0].Language)
	assert.NotEmpty(t, res.Spans, "broken documents are still highlighted")

	res, err = h.Highlight(context.Background(), "go", []byte("package main\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}

func TestRegistrySyntaxErrorsUnknownLanguage(t *testing.T) {
	_, err := newRegistry().SyntaxErrors(context.Background(), "cobol", nil)
	assert.ErrorIs(t, err, query.ErrUnknownLanguage)
}

func TestRegistryPruneTreeCaches(t *testing.T) {
	r := providers.NewRegistry()
	r.Register(golang.New(base.WithTreeCache(time.Millisecond)))
	r.Register(python.New())

	_, err := r.Parse(context.Background(), "go", []byte("package a\n"))
	require.NoError(t, err)
	_, err = r.Parse(context.Background(), "go", []byte("package a\n"))
	require.NoError(t, err)
	p, _ := r.Get("go")
	assert.Equal(t, int64(1), p.Stats().CacheHits)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, r.Prune())
	assert.Zero(t, r.Prune())
}
