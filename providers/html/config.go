package html

import (
	"embed"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"

	"github.com/oxhq/scopeq/query"
)

//go:embed queries
var queries embed.FS

// Config implements LanguageConfig for HTML
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "html"
}

// Aliases accepted in injections and on the command line
func (c *Config) Aliases() []string {
	return []string{"htm", "xhtml"}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// GetLanguage returns tree-sitter language for HTML
func (c *Config) GetLanguage() *sitter.Language {
	return html.GetLanguage()
}

// Queries returns the embedded query files
func (c *Config) Queries() query.Loader {
	return query.FSLoader{FS: queries, Root: "queries"}
}
