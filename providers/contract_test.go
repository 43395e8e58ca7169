package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/oxhq/scopeq/query"
)

// MockProvider for testing
type MockProvider struct {
	language   string
	aliases    []string
	extensions []string
	queries    query.MapLoader
}

func (m *MockProvider) Language() string {
	return m.language
}

func (m *MockProvider) Aliases() []string {
	return m.aliases
}

func (m *MockProvider) Extensions() []string {
	return m.extensions
}

func (m *MockProvider) Queries() query.Loader {
	return m.queries
}

func (m *MockProvider) Grammar() query.Grammar {
	return nil
}

func (m *MockProvider) Parse(ctx context.Context, source []byte) (query.Cursor, error) {
	return nil, errors.New("mock provider does not parse")
}

func (m *MockProvider) Validate(ctx context.Context, source []byte) ValidationResult {
	return ValidationResult{Valid: true}
}

func (m *MockProvider) Stats() Stats {
	return Stats{}
}

func newMock(language string, aliases ...string) *MockProvider {
	return &MockProvider{
		language:   language,
		aliases:    aliases,
		extensions: []string{"." + language},
		queries:    query.MapLoader{},
	}
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Error("NewRegistry should return non-nil registry")
	}

	if registry.providers == nil {
		t.Error("Registry providers map should be initialized")
	}
}

func TestRegisterProvider(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMock("mocklang", "mock"))

	provider, exists := registry.Get("mocklang")
	if !exists {
		t.Fatal("Provider should be registered")
	}
	if provider.Language() != "mocklang" {
		t.Errorf("Expected language 'mocklang', got '%s'", provider.Language())
	}

	// Aliases resolve through the catalog
	if _, exists := registry.Get("mock"); !exists {
		t.Error("Provider should be reachable by alias")
	}
	if _, exists := registry.Get("nonexistent"); exists {
		t.Error("Nonexistent provider should not be found")
	}
}

func TestListAndLanguagesAreSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMock("zeta"))
	registry.Register(newMock("alpha"))
	registry.Register(newMock("mid"))

	languages := registry.Languages()
	expected := []string{"alpha", "mid", "zeta"}
	if len(languages) != len(expected) {
		t.Fatalf("Expected %d languages, got %v", len(expected), languages)
	}
	for i, lang := range expected {
		if languages[i] != lang {
			t.Errorf("Expected %s at %d, got %s", lang, i, languages[i])
		}
	}

	list := registry.List()
	for i, p := range list {
		if p.Language() != expected[i] {
			t.Errorf("Expected provider %s at %d, got %s", expected[i], i, p.Language())
		}
	}
}

func TestParseUnknownLanguage(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Parse(context.Background(), "klingon", nil)
	if !errors.Is(err, query.ErrUnknownLanguage) {
		t.Errorf("Expected ErrUnknownLanguage, got %v", err)
	}
}

func TestLoadSearchOrder(t *testing.T) {
	registry := NewRegistry()

	own := newMock("host")
	own.queries["host/highlights"] = "; own"
	base := newMock("shared")
	base.queries["shared/highlights"] = "; base"
	base.queries["host/highlights"] = "; shadowed"
	registry.Register(own)
	registry.Register(base)

	text, err := registry.Load("host", "highlights")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if text != "; own" {
		t.Errorf("Expected the language's own query first, got %q", text)
	}

	// Files embedded by another provider are found too
	text, err = registry.Load("shared", "highlights")
	if err != nil || text != "; base" {
		t.Errorf("Expected base query, got %q (%v)", text, err)
	}

	// Registered overrides win over every provider
	registry.RegisterQueries(query.MapLoader{"host/highlights": "; override"})
	text, err = registry.Load("host", "highlights")
	if err != nil || text != "; override" {
		t.Errorf("Expected override, got %q (%v)", text, err)
	}

	if _, err := registry.Load("host", "locals"); !errors.Is(err, query.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing concern, got %v", err)
	}
}

func TestGrammarOfUnknownLanguage(t *testing.T) {
	registry := NewRegistry()
	if registry.Grammar("nothing") != nil {
		t.Error("Expected nil grammar for an unregistered language")
	}
}
