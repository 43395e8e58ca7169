package golang

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
	if provider.Language() != "go" {
		t.Errorf("Expected language 'go', got '%s'", provider.Language())
	}
	if !slices.Contains(provider.Extensions(), ".go") {
		t.Errorf("Expected extension '.go' in %v", provider.Extensions())
	}
	if !slices.Contains(provider.Aliases(), "golang") {
		t.Errorf("Expected alias 'golang' in %v", provider.Aliases())
	}
}

// TestParse checks that Go sources parse into a tree rooted at source_file
func TestParse(t *testing.T) {
	provider := New()

	cursor, err := provider.Parse(context.Background(), []byte("package main\n\nfunc main() {}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cursor.Node().Type(); got != "source_file" {
		t.Errorf("Expected root 'source_file', got '%s'", got)
	}
	if !cursor.GotoFirstChild() {
		t.Error("Expected the root to have children")
	}
}

func TestValidate(t *testing.T) {
	provider := New()
	ctx := context.Background()

	if result := provider.Validate(ctx, []byte("package main\n\nfunc main() {}\n")); !result.Valid {
		t.Errorf("Expected valid source, got errors %v", result.Errors)
	}

	result := provider.Validate(ctx, []byte("func ("))
	if result.Valid {
		t.Error("Expected invalid source to fail validation")
	}
	if len(result.Errors) == 0 {
		t.Error("Expected validation errors")
	}
}

func TestQueriesAndGrammar(t *testing.T) {
	provider := New()

	text, err := provider.Queries().Load("go", "highlights")
	if err != nil {
		t.Fatalf("Expected bundled highlights query: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty highlights query")
	}

	grammar := provider.Grammar()
	if !grammar.HasNodeType("function_declaration", true) {
		t.Error("Expected grammar to know 'function_declaration'")
	}
	if grammar.HasNodeType("no_such_node", true) {
		t.Error("Expected grammar to reject unknown node types")
	}
}
