package golang

import (
	"embed"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/oxhq/scopeq/query"
)

//go:embed queries
var queries embed.FS

// Config implements LanguageConfig for Go
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "go"
}

// Aliases accepted in injections and on the command line
func (c *Config) Aliases() []string {
	return []string{"golang"}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".go"}
}

// GetLanguage returns tree-sitter language for Go
func (c *Config) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

// Queries returns the embedded query files
func (c *Config) Queries() query.Loader {
	return query.FSLoader{FS: queries, Root: "queries"}
}
