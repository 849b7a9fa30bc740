// Package web embeds the dashboard page template and its static assets.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/mercadobr/web"
//	tmpl := template.Must(template.ParseFS(web.Templates(), "*.html"))
//	static := web.StaticFS()
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// Templates returns a filesystem rooted at the embedded templates/ directory.
func Templates() fs.FS {
	return sub("templates")
}

// StaticFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS.
func StaticFS() fs.FS {
	return sub("static")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(assets, dir)
	if err != nil {
		panic("web: " + err.Error())
	}
	return f
}
