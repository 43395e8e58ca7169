package php

import (
	"embed"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/oxhq/scopeq/query"
)

//go:embed queries
var queries embed.FS

// Config implements LanguageConfig for PHP
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "php"
}

// Aliases accepted in injections and on the command line
func (c *Config) Aliases() []string {
	return []string{"php5", "php7"}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".php", ".phtml"}
}

// GetLanguage returns tree-sitter language for PHP
func (c *Config) GetLanguage() *sitter.Language {
	return php.GetLanguage()
}

// Queries returns the embedded query files
func (c *Config) Queries() query.Loader {
	return query.FSLoader{FS: queries, Root: "queries"}
}
