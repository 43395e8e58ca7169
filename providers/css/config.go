package css

import (
	"embed"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"

	"github.com/oxhq/scopeq/query"
)

//go:embed queries
var queries embed.FS

// Config implements LanguageConfig for CSS
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "css"
}

// Aliases accepted in injections and on the command line
func (c *Config) Aliases() []string {
	return []string{}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".css"}
}

// GetLanguage returns tree-sitter language for CSS
func (c *Config) GetLanguage() *sitter.Language {
	return css.GetLanguage()
}

// Queries returns the embedded query files
func (c *Config) Queries() query.Loader {
	return query.FSLoader{FS: queries, Root: "queries"}
}
