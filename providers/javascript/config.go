package javascript

import (
	"embed"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/oxhq/scopeq/providers/ecma"
	"github.com/oxhq/scopeq/query"
)

//go:embed queries
var queries embed.FS

// Config implements LanguageConfig for JavaScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "javascript"
}

// Aliases accepted in injections and on the command line
func (c *Config) Aliases() []string {
	return []string{"js", "jsx", "node"}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// GetLanguage returns tree-sitter language for JavaScript
func (c *Config) GetLanguage() *sitter.Language {
	return javascript.GetLanguage()
}

// Queries returns the embedded query files
func (c *Config) Queries() query.Loader {
	return query.MultiLoader{
		query.FSLoader{FS: queries, Root: "queries"},
		ecma.Queries(),
	}
}
