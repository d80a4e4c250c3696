// Package gatecore provides the embedded web assets for the gateway service's admin UI.
package gatecore

import (
	"embed"
	"io/fs"
)

//go:embed web/*
var WebFS embed.FS

// GetWebFS returns the embedded web filesystem with the "web/" prefix stripped.
func GetWebFS() (fs.FS, error) {
	return fs.Sub(WebFS, "web")
}
