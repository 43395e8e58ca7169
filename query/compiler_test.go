package query_test

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scopeq/internal/treetest"
	"github.com/oxhq/scopeq/query"
)

type fakeGrammar struct {
	named     map[string]bool
	anonymous map[string]bool
	fields    map[string]bool
}

func (g fakeGrammar) HasNodeType(name string, named bool) bool {
	if named {
		return g.named[name]
	}
	return g.anonymous[name]
}

func (g fakeGrammar) HasField(name string) bool { return g.fields[name] }

func TestCompileResilience(t *testing.T) {
	q, diags := query.Compile(`
(identifier) @variable
(call_expression function: (identifier @fn
(number) @number
`, query.Options{Language: "test", Concern: "highlights"})

	require.Len(t, diags.OfKind(query.KindSyntaxError), 1)
	assert.False(t, diags.HasFatal())
	require.Equal(t, 2, q.PatternCount())

	root := treetest.Named("program", treetest.Leaf("identifier", "x"), treetest.Leaf("number", "1"))
	source := treetest.Layout(root)
	spans := flatten(exec(t, q, root, source), source)
	assert.Equal(t, []capturedSpan{
		{Pattern: 0, Name: "variable", Text: "x", Start: 0, End: 1},
		{Pattern: 1, Name: "number", Text: "1", Start: 2, End: 3},
	}, spans)
}

func TestCompileDuplicateCaptures(t *testing.T) {
	q, diags := query.Compile(`
(pair (identifier) @x (identifier) @x)
[(identifier) @name (string) @name]
`, query.Options{Language: "test"})

	syntax := diags.OfKind(query.KindSyntaxError)
	require.Len(t, syntax, 1)
	var se *query.SyntaxError
	require.True(t, errors.As(syntax[0], &se))
	assert.Equal(t, query.SyntaxDuplicateCapture, se.Kind)

	require.Equal(t, 1, q.PatternCount(), "a name reused across alternation branches is fine")
	assert.Equal(t, []string{"name"}, q.CaptureNames())
}

func TestCompileDispatchKeys(t *testing.T) {
	q := mustCompile(t, `
(identifier) @a
((comment)+ @b)
[(string) (number)] @c
(_) @d
"if" @e
((comment)? @f . (identifier))
`)
	tests := []struct {
		types []string
		any   bool
	}{
		{[]string{"identifier"}, false},
		{[]string{"comment"}, false},
		{[]string{"number", "string"}, false},
		{nil, true},
		{nil, true},
		{nil, true},
	}
	require.Equal(t, len(tests), q.PatternCount())
	for i, tt := range tests {
		types, anyType := q.Patterns()[i].DispatchKeys()
		assert.Equal(t, tt.types, types, "pattern %d", i)
		assert.Equal(t, tt.any, anyType, "pattern %d", i)
	}
}

func TestCompileWithGrammar(t *testing.T) {
	g := fakeGrammar{
		named:     map[string]bool{"identifier": true, "call": true},
		anonymous: map[string]bool{"(": true},
		fields:    map[string]bool{"function": true},
	}
	q, diags := query.Compile(`
(identifier) @variable
(identifer) @typo
(call function: (identifier))
(call callee: (identifier))
"{" @brace
`, query.Options{Language: "test", Grammar: g})

	assert.Len(t, diags.OfKind(query.KindUnknownNodeType), 2)
	assert.Len(t, diags.OfKind(query.KindUnknownField), 1)
	assert.Empty(t, diags.Errors())
	require.Equal(t, 5, q.PatternCount())

	never := []bool{}
	for _, p := range q.Patterns() {
		never = append(never, p.NeverMatches())
	}
	assert.Equal(t, []bool{false, true, false, true, true}, never)

	root := treetest.Named("program", treetest.Leaf("identifer", "x"))
	assert.Empty(t, exec(t, q, root, treetest.Layout(root)))
}

func TestResolveInherits(t *testing.T) {
	loader := query.MapLoader{
		"ecma/highlights":       "(identifier) @variable\n",
		"jsx/highlights":        "; inherits: ecma\n(jsx_element) @tag\n",
		"javascript/highlights": "; inherits: jsx,ecma\n(number) @number\n",
	}
	sources, diags, err := query.ResolveInherits(loader, "javascript", "highlights")
	require.NoError(t, err)
	assert.Empty(t, diags)

	var order []string
	for _, s := range sources {
		order = append(order, s.Language)
	}
	assert.Equal(t, []string{"ecma", "jsx", "javascript"}, order)

	q, cdiags := query.CompileSources(sources, query.Options{Language: "javascript", Concern: "highlights"})
	assert.Empty(t, cdiags)
	require.Equal(t, 3, q.PatternCount())
	assert.Equal(t, "ecma", q.Patterns()[0].Language)
	assert.Equal(t, "javascript", q.Patterns()[2].Language)
}

func TestResolveInheritsMissingBase(t *testing.T) {
	loader := query.MapLoader{"css/highlights": "; inherits: nope\n(tag_name) @tag\n"}
	sources, diags, err := query.ResolveInherits(loader, "css", "highlights")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Len(t, diags.OfKind(query.KindLoad), 1)
	assert.ErrorIs(t, diags[0], query.ErrNotFound)

	_, _, err = query.ResolveInherits(loader, "rust", "highlights")
	assert.True(t, query.IsNotFound(err))
}

func TestRegistryInheritanceCycleIsScoped(t *testing.T) {
	reg := query.NewRegistry(query.MapLoader{
		"a/highlights": "; inherits: b\n(x) @x\n",
		"b/highlights": "; inherits: a\n(y) @y\n",
		"c/highlights": "(z) @z\n",
	})

	q, diags, err := reg.Query("a", "highlights")
	assert.Nil(t, q)
	require.Error(t, err)
	var cycle *query.InheritanceCycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
	assert.ErrorIs(t, err, query.ErrInheritanceCycle)
	assert.True(t, diags.HasFatal())

	q, diags, err = reg.Query("c", "highlights")
	require.NoError(t, err)
	assert.False(t, diags.HasFatal())
	assert.Equal(t, 1, q.PatternCount())
}

func TestRegistryCachesAndInvalidates(t *testing.T) {
	fsys := fstest.MapFS{
		"queries/go/highlights.scm": {Data: []byte("(identifier) @variable\n(unknown_predicate) @x (#frobnicate! @x)\n")},
	}
	reg := query.NewRegistry(query.FSLoader{FS: fsys, Root: "queries"})

	var wg sync.WaitGroup
	results := make([]*query.Query, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, _, err := reg.Query("go", "highlights")
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}
	wg.Wait()
	for _, q := range results {
		assert.Same(t, results[0], q)
	}

	_, diags, err := reg.Query("go", "highlights")
	require.NoError(t, err)
	require.Len(t, diags.Warnings(), 1)
	assert.Equal(t, "go", diags[0].Language)
	assert.Equal(t, "highlights", diags[0].Concern)
	assert.Equal(t, 1, diags[0].Pattern)

	reg.Invalidate("go")
	again, _, err := reg.Query("go", "highlights")
	require.NoError(t, err)
	assert.NotSame(t, results[0], again)

	_, _, err = reg.Query("go", "locals")
	assert.ErrorIs(t, err, query.ErrNotFound)
}
