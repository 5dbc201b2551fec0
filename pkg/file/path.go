package file

import (
	"path/filepath"
	"strings"
)

// ExportPath names a subtitle export: <dir>/<videoID>.<lang>.srt. Characters
// that are unsafe in file names are replaced.
func ExportPath(dir, videoID, lang string) string {
	base := sanitize(videoID)
	if base == "" {
		base = "transcript"
	}
	return filepath.Join(dir, base+"."+sanitize(lang)+".srt")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
