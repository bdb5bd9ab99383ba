package acquire

import (
	"strings"

	"wallp/internal/sources"
)

const defaultExtension = "jpg"

// Extension returns the file extension for a resolved candidate: the
// candidate's explicit extension, else the text after the final '.' of the
// URL path, else jpg.
func Extension(c sources.Candidate) string {
	if ext := cleanExtension(c.Extension); ext != "" {
		return ext
	}
	u := c.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	dot := strings.LastIndex(u, ".")
	if dot < 0 || dot < strings.LastIndex(u, "/") {
		return defaultExtension
	}
	if ext := cleanExtension(u[dot+1:]); ext != "" {
		return ext
	}
	return defaultExtension
}

func cleanExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" || len(ext) > 5 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
