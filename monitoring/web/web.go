// Package web holds the dashboard page of the monitor.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevModeEnv names the environment variable that makes the monitor serve the
// pages from the source tree instead of the embedded copy.
const DevModeEnv = "VMSIM_MONITOR_DEV"

//go:embed dist
var dist embed.FS

// GetAssets returns the file system the dashboard is served from.
func GetAssets() http.FileSystem {
	if devMode() {
		return http.Dir(sourceDir())
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	return err == nil && on
}

func sourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the monitor pages")
	}

	dir := filepath.Join(filepath.Dir(file), "dist")
	fmt.Fprintf(os.Stderr, "Serving monitor pages from %s\n", dir)

	return dir
}
