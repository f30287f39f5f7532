// Package web holds the pages of the monitor.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

//go:embed dist
var dist embed.FS

// Assets returns the pages of the monitor. With a dir, the pages are read
// from disk on every request, so that they can be edited while a monitor
// is running. Otherwise the pages built into the binary are served.
func Assets(dir string) (http.FileSystem, error) {
	if dir == "" {
		pages, err := fs.Sub(dist, "dist")
		if err != nil {
			return nil, err
		}

		return http.FS(pages), nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("monitor pages: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("monitor pages: %s is not a directory", dir)
	}

	return http.Dir(dir), nil
}

// SourceDir returns the directory of the pages in the source tree.
func SourceDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "dist")
}
