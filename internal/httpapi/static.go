package httpapi

import (
	"net"
	"os"
	"path/filepath"
	"strings"
)

// serveStatic serves reqPath from under publicDir, rejecting any resolved
// path outside the canonicalized public directory (403) and any missing
// file (404), per spec.md §4.7/§6. This responder is intentionally
// trivial — sandbox then serve — per spec.md §1.
func serveStatic(conn net.Conn, publicDir, reqPath string) {
	clean := reqPath
	if clean == "/" {
		clean = "/index.html"
	}
	rel := strings.TrimPrefix(clean, "/")
	full := filepath.Join(publicDir, rel)

	base, err := filepath.EvalSymlinks(publicDir)
	if err != nil {
		base, err = filepath.Abs(publicDir)
		if err != nil {
			writeError(conn, "500 Internal Server Error", "internal error")
			return
		}
	}

	canonical, err := filepath.EvalSymlinks(full)
	if err != nil {
		writeError(conn, "404 Not Found", "Not found")
		return
	}

	if !withinBase(canonical, base) {
		writeError(conn, "403 Forbidden", "Forbidden")
		return
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		writeError(conn, "404 Not Found", "Not found")
		return
	}

	writeBytesStatus(conn, "200 OK", data, contentTypeFor(clean))
}

func withinBase(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
