package typescript

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
	if provider.Language() != "typescript" {
		t.Errorf("Expected language 'typescript', got '%s'", provider.Language())
	}
	if !slices.Contains(provider.Extensions(), ".ts") {
		t.Errorf("Expected extension '.ts' in %v", provider.Extensions())
	}
	if !slices.Contains(provider.Aliases(), "ts") {
		t.Errorf("Expected alias 'ts' in %v", provider.Aliases())
	}
}

// TestParse checks that TypeScript sources parse into a tree rooted at program
func TestParse(t *testing.T) {
	provider := New()

	cursor, err := provider.Parse(context.Background(), []byte("interface Point { x: number }\nconst p: Point = { x: 1 };\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cursor.Node().Type(); got != "program" {
		t.Errorf("Expected root 'program', got '%s'", got)
	}
	if !cursor.GotoFirstChild() {
		t.Error("Expected the root to have children")
	}
}

func TestValidate(t *testing.T) {
	provider := New()
	ctx := context.Background()

	if result := provider.Validate(ctx, []byte("interface Point { x: number }\nconst p: Point = { x: 1 };\n")); !result.Valid {
		t.Errorf("Expected valid source, got errors %v", result.Errors)
	}

	result := provider.Validate(ctx, []byte("let x: = ;"))
	if result.Valid {
		t.Error("Expected invalid source to fail validation")
	}
	if len(result.Errors) == 0 {
		t.Error("Expected validation errors")
	}
}

func TestQueriesAndGrammar(t *testing.T) {
	provider := New()

	text, err := provider.Queries().Load("typescript", "highlights")
	if err != nil {
		t.Fatalf("Expected bundled highlights query: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty highlights query")
	}

	grammar := provider.Grammar()
	if !grammar.HasNodeType("interface_declaration", true) {
		t.Error("Expected grammar to know 'interface_declaration'")
	}
	if grammar.HasNodeType("no_such_node", true) {
		t.Error("Expected grammar to reject unknown node types")
	}
}
