package objectstore

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"oif/internal/datasource/httpds"
	"oif/internal/oiferr"
	"oif/internal/table"
)

// Artifact is something the Uploader can store: RawTable, FilePath or URL.
type Artifact interface{ artifact() }

// RawTable is an in-memory table serialized as CSV.
type RawTable struct {
	Table    *table.Table
	Filename string
}

// FilePath is a file on local disk. Filename defaults to its base name.
type FilePath struct {
	Path     string
	Filename string
}

// URL is a remote file re-uploaded unchanged. Filename defaults to the
// last URL path segment. A non-nil Body holds bytes already downloaded and
// is stored as is, without fetching the URL again.
type URL struct {
	URL      string
	Filename string
	Headers  http.Header
	Body     []byte
}

func (RawTable) artifact() {}
func (FilePath) artifact() {}
func (URL) artifact()      {}

// Target says where an artifact goes.
type Target struct {
	// Code is the indicator code used in generated keys.
	Code string
	// Raw selects the raw-upload key layout.
	Raw bool
	// Key, when set, is used verbatim.
	Key string
}

// Receipt describes a completed upload.
type Receipt struct {
	Key         string
	Bytes       int
	XXH3        string
	ContentType string
}

// MetaChecksum is the object metadata key holding the xxh3 digest.
const MetaChecksum = "xxh3"

// ProcessedKey is the key of a formatted indicator file.
func ProcessedKey(year, code, filename string) string {
	return year + "/" + code + "/" + filename
}

// RawKey is the key of a source file kept for provenance.
func RawKey(year, code, filename string) string {
	return year + "_update/raw/" + code + "/" + filename
}

// Uploader resolves artifacts to bytes and stores them.
type Uploader struct {
	Store Store
	// HTTP downloads URL artifacts; nil uses a default client.
	HTTP *httpds.Client
	// Year prefixes every generated key.
	Year string
}

// Upload stores a under the key derived from t. Storage and download
// failures are ExternalIO errors.
func (u *Uploader) Upload(ctx context.Context, a Artifact, t Target) (Receipt, error) {
	var (
		body     []byte
		filename string
		err      error
	)
	switch v := a.(type) {
	case RawTable:
		if v.Table == nil {
			return Receipt{}, fmt.Errorf("objectstore: raw table is nil")
		}
		if v.Filename == "" && t.Key == "" {
			return Receipt{}, fmt.Errorf("objectstore: a raw table upload needs a filename or a key")
		}
		filename = v.Filename
		if body, err = table.MarshalCSV(v.Table); err != nil {
			return Receipt{}, fmt.Errorf("objectstore: %w", err)
		}
	case FilePath:
		filename = v.Filename
		if filename == "" {
			filename = filepath.Base(v.Path)
		}
		if body, err = os.ReadFile(v.Path); err != nil {
			return Receipt{}, oiferr.IO("read "+v.Path, err)
		}
	case URL:
		filename = v.Filename
		if filename == "" {
			filename = httpds.FilenameFromURL(v.URL)
		}
		if body = v.Body; body != nil {
			break
		}
		c := u.HTTP
		if c == nil {
			c = httpds.NewClient(httpds.Config{MaxRetries: 3})
		}
		if body, err = c.Fetch(ctx, v.URL, v.Headers); err != nil {
			return Receipt{}, err
		}
	default:
		return Receipt{}, fmt.Errorf("objectstore: unsupported artifact %T", a)
	}

	key, err := u.key(t, filename)
	if err != nil {
		return Receipt{}, err
	}
	r := Receipt{
		Key:         key,
		Bytes:       len(body),
		XXH3:        Checksum(body),
		ContentType: contentType(key),
	}
	if err := u.Store.Put(ctx, key, body, r.ContentType, map[string]string{MetaChecksum: r.XXH3}); err != nil {
		return Receipt{}, oiferr.IO("put "+key, err)
	}
	return r, nil
}

func (u *Uploader) key(t Target, filename string) (string, error) {
	if t.Key != "" {
		return strings.TrimPrefix(t.Key, "/"), nil
	}
	switch {
	case u.Year == "":
		return "", fmt.Errorf("objectstore: year is empty")
	case t.Code == "":
		return "", fmt.Errorf("objectstore: indicator code is empty")
	case filename == "":
		return "", fmt.Errorf("objectstore: filename is empty")
	}
	if t.Raw {
		return RawKey(u.Year, t.Code, filename), nil
	}
	return ProcessedKey(u.Year, t.Code, filename), nil
}

// Checksum is the hex xxh3-64 digest of b.
func Checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

func contentType(key string) string {
	switch ext := strings.ToLower(path.Ext(key)); ext {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
