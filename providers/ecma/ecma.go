// Package ecma holds the query files shared by the JavaScript family. It has
// no grammar of its own; languages pull it in with "; inherits: ecma".
package ecma

import (
	"embed"

	"github.com/oxhq/scopeq/query"
)

// Language is the name other query files inherit from.
const Language = "ecma"

//go:embed queries
var queries embed.FS

// Queries returns the loader for the shared query files.
func Queries() query.Loader {
	return query.FSLoader{FS: queries, Root: "queries"}
}
