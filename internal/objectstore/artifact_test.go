package objectstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oif/internal/datasource/httpds"
	"oif/internal/oiferr"
	"oif/internal/table"
)

func newUploader(t *testing.T) (*Uploader, *Local) {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &Uploader{Store: l, Year: "2022", HTTP: httpds.NewClient(httpds.Config{})}, l
}

func TestKeys(t *testing.T) {
	t.Parallel()

	if got := ProcessedKey("2022", "A1", "A1.csv"); got != "2022/A1/A1.csv" {
		t.Fatalf("ProcessedKey=%s", got)
	}
	if got := RawKey("2022", "A1", "emissions.xlsx"); got != "2022_update/raw/A1/emissions.xlsx" {
		t.Fatalf("RawKey=%s", got)
	}
}

/*
TestUpload_Variants covers each artifact kind: the key layout it lands under,
the bytes stored, and the checksum recorded both in the receipt and in the
object metadata.
*/
func TestUpload_Variants(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote source"))
	}))
	t.Cleanup(srv.Close)

	src := filepath.Join(t.TempDir(), "local.xlsx")
	if err := os.WriteFile(src, []byte("local source"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl := table.MustNew([]string{"Year", "Value"}, []table.Value{int64(1990), 100.0})

	tests := []struct {
		name     string
		artifact Artifact
		target   Target
		wantKey  string
		wantBody string
	}{
		{"table_processed", RawTable{Table: tbl, Filename: "A1.csv"}, Target{Code: "A1"}, "2022/A1/A1.csv", "Year,Value\n1990,100\n"},
		{"table_raw", RawTable{Table: tbl, Filename: "extracted.csv"}, Target{Code: "A1", Raw: true}, "2022_update/raw/A1/extracted.csv", "Year,Value\n1990,100\n"},
		{"table_explicit_key", RawTable{Table: tbl}, Target{Key: "/custom/a.csv"}, "custom/a.csv", "Year,Value\n1990,100\n"},
		{"file_default_name", FilePath{Path: src}, Target{Code: "A3", Raw: true}, "2022_update/raw/A3/local.xlsx", "local source"},
		{"file_renamed", FilePath{Path: src, Filename: "src.xlsx"}, Target{Code: "A3", Raw: true}, "2022_update/raw/A3/src.xlsx", "local source"},
		{"url_default_name", URL{URL: srv.URL + "/media/pm25.csv?x=1"}, Target{Code: "A3", Raw: true}, "2022_update/raw/A3/pm25.csv", "remote source"},
		{"url_prefetched_body", URL{URL: "http://127.0.0.1:1/media/pm25.csv", Body: []byte("already read")}, Target{Code: "A3", Raw: true}, "2022_update/raw/A3/pm25.csv", "already read"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u, l := newUploader(t)
			r, err := u.Upload(context.Background(), tc.artifact, tc.target)
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if r.Key != tc.wantKey {
				t.Fatalf("Key=%s; want %s", r.Key, tc.wantKey)
			}
			b, err := l.Get(context.Background(), r.Key)
			if err != nil || string(b) != tc.wantBody {
				t.Fatalf("stored %q, %v; want %q", b, err, tc.wantBody)
			}
			if r.Bytes != len(tc.wantBody) || r.XXH3 != Checksum(b) {
				t.Fatalf("receipt %+v", r)
			}
			if m, _ := l.Metadata(r.Key); m[MetaChecksum] != r.XXH3 {
				t.Fatalf("metadata %v; want xxh3=%s", m, r.XXH3)
			}
		})
	}
}

func TestUpload_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	tbl := table.MustNew([]string{"a"})

	tests := []struct {
		name   string
		a      Artifact
		target Target
		isIO   bool
		substr string
	}{
		{"table_without_name_or_key", RawTable{Table: tbl}, Target{Code: "A1", Raw: true}, false, "filename or a key"},
		{"nil_table", RawTable{Filename: "x.csv"}, Target{Code: "A1"}, false, "nil"},
		{"missing_code", RawTable{Table: tbl, Filename: "x.csv"}, Target{}, false, "code is empty"},
		{"missing_file", FilePath{Path: "/does/not/exist.xlsx"}, Target{Code: "A1"}, true, "read"},
		{"url_404", URL{URL: srv.URL + "/gone.xlsx"}, Target{Code: "A1"}, true, "404"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u, _ := newUploader(t)
			_, err := u.Upload(context.Background(), tc.a, tc.target)
			if err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("err=%v; want containing %q", err, tc.substr)
			}
			if got := errors.Is(err, oiferr.ErrExternalIO); got != tc.isIO {
				t.Fatalf("ExternalIO=%v; want %v (%v)", got, tc.isIO, err)
			}
		})
	}
}

func TestChecksum_Stable(t *testing.T) {
	t.Parallel()

	a, b := Checksum([]byte("Year,Value\n")), Checksum([]byte("Year,Value\n"))
	if a != b || len(a) != 16 || a == Checksum([]byte("Year,Value")) {
		t.Fatalf("Checksum unstable or colliding: %s %s", a, b)
	}
}
