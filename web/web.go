// Package web embeds the built SPA frontend.
package web

import "embed"

//go:embed dist
var DistFS embed.FS
