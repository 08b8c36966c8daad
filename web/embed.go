// Package web holds the dashboard templates and browser assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html static/*
var files embed.FS

// ParseTemplates parses every page and fragment template with funcs available.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}

// Static returns the assets served under /static/.
func Static() (fs.FS, error) {
	return fs.Sub(files, "static")
}
