// Package web embeds the landing page template and its static assets.
package web

import "embed"

// Templates holds the HTML templates rendered by the server.
//
//go:embed templates/*.html
var Templates embed.FS

// Static holds the script, stylesheet and icons served under /static/.
//
//go:embed static
var Static embed.FS
