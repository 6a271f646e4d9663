// Package web ships the browser upload widget as an embedded static page so
// the service runs as a single binary.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html
var content embed.FS

func Handler() http.Handler {
	return http.FileServer(http.FS(content))
}
