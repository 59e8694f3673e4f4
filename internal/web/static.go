package web

import (
	"embed"
)

// staticFiles holds the driver station page.
//
//go:embed static/*
var staticFiles embed.FS
