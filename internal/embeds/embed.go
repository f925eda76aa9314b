// Package embeds bundles the HTML templates and static assets into the binary.
package embeds

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS returns the embedded static files
func StaticFS() (fs.FS, error) {
	return fs.Sub(content, "static")
}

// TemplateFS returns the embedded template files
func TemplateFS() (fs.FS, error) {
	return fs.Sub(content, "templates")
}

// ParsePage parses the base layout, every partial and the named page
func ParsePage(funcs template.FuncMap, page string) (*template.Template, error) {
	return template.New("base").Funcs(funcs).ParseFS(content,
		"templates/layouts/base.html",
		"templates/partials/*.html",
		"templates/pages/"+page+".html",
	)
}
