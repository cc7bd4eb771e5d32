package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
)

// filenameCleaner replaces runs of characters that are unsafe in object keys.
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// HashString returns a stable SHA1 hex digest of s.
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// FilenameFromURL derives the object name for a downloaded source file: the
// last path segment, cleaned of unsafe characters. URLs without a usable
// segment (an unparseable URL, a bare host, a trailing slash) fall back to
// the SHA1 of the URL so the name stays deterministic.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" || u.Path == "" || u.Path[len(u.Path)-1] == '/' {
		return HashString(rawURL)
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	clean := filenameCleaner.ReplaceAllString(base, "_")
	if clean == "" || clean == "_" {
		return HashString(rawURL)
	}
	return clean
}
