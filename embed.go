// Package console embeds the admin console's templates and static assets.
package console

import (
	"embed"
	"io/fs"
)

// TemplatesFS embeds the HTML templates directory.
//
//go:embed templates
var TemplatesFS embed.FS

// StaticFS embeds the static assets directory.
//
//go:embed static
var StaticFS embed.FS

// Templates returns the templates with the directory prefix stripped.
func Templates() fs.FS {
	sub, err := fs.Sub(TemplatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static returns the static assets with the directory prefix stripped.
func Static() fs.FS {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
