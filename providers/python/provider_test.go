package python

import (
	"context"
	"slices"
	"testing"
)

func TestNew(t *testing.T) {
	provider := New()
	if provider == nil {
		t.Fatal("New returned nil")
	}
	if provider.Language() != "python" {
		t.Errorf("Expected language 'python', got '%s'", provider.Language())
	}
	if !slices.Contains(provider.Extensions(), ".py") {
		t.Errorf("Expected extension '.py' in %v", provider.Extensions())
	}
	if !slices.Contains(provider.Aliases(), "py") {
		t.Errorf("Expected alias 'py' in %v", provider.Aliases())
	}
}

// TestParse checks that Python sources parse into a tree rooted at module
func TestParse(t *testing.T) {
	provider := New()

	cursor, err := provider.Parse(context.Background(), []byte("def greet(name):\n    return name\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cursor.Node().Type(); got != "module" {
		t.Errorf("Expected root 'module', got '%s'", got)
	}
	if !cursor.GotoFirstChild() {
		t.Error("Expected the root to have children")
	}
}

func TestValidate(t *testing.T) {
	provider := New()
	ctx := context.Background()

	if result := provider.Validate(ctx, []byte("def greet(name):\n    return name\n")); !result.Valid {
		t.Errorf("Expected valid source, got errors %v", result.Errors)
	}

	result := provider.Validate(ctx, []byte("def f(:"))
	if result.Valid {
		t.Error("Expected invalid source to fail validation")
	}
	if len(result.Errors) == 0 {
		t.Error("Expected validation errors")
	}
}

func TestQueriesAndGrammar(t *testing.T) {
	provider := New()

	text, err := provider.Queries().Load("python", "highlights")
	if err != nil {
		t.Fatalf("Expected bundled highlights query: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty highlights query")
	}

	grammar := provider.Grammar()
	if !grammar.HasNodeType("function_definition", true) {
		t.Error("Expected grammar to know 'function_definition'")
	}
	if grammar.HasNodeType("no_such_node", true) {
		t.Error("Expected grammar to reject unknown node types")
	}
}
