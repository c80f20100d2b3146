// Package assets embeds the viewer stylesheet and the browser scripts.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files.
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// ViewerCSS returns the stylesheet shared by live pages and exported files.
func ViewerCSS() ([]byte, error) {
	return clientFS.ReadFile("client/viewer.css")
}

// LiveJS returns the script that drives a live page over the websocket.
func LiveJS() ([]byte, error) {
	return clientFS.ReadFile("client/live.js")
}

// SnapshotJS returns the standalone script inlined into exported files.
func SnapshotJS() ([]byte, error) {
	return clientFS.ReadFile("client/snapshot.js")
}
