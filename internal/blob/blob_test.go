package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 serves the handful of path-style bucket requests the driver makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func response(status int, body []byte, h http.Header) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(data))},
			"Content-Type":   {f.types[key]},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			data = nil
		}
		return response(http.StatusOK, data, h), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return response(http.StatusOK, nil, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return response(http.StatusNoContent, nil, nil), nil
	}
	return response(http.StatusNotImplemented, nil, nil), nil
}

// decodeChunked strips aws-chunked framing: <hex size>\r\n<data>\r\n ... 0\r\n<trailers>.
func decodeChunked(b []byte) []byte {
	var out []byte
	for {
		line, rest, ok := bytes.Cut(b, []byte("\r\n"))
		if !ok {
			return out
		}
		hexSize, _, _ := bytes.Cut(line, []byte(";"))
		n, err := strconv.ParseInt(string(hexSize), 16, 64)
		if err != nil || n == 0 || int64(len(rest)) < n {
			return out
		}
		out = append(out, rest[:n]...)
		b = bytes.TrimPrefix(rest[n:], []byte("\r\n"))
	}
}

func newTestS3(t *testing.T) *S3 {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	fake := newFakeS3()
	st, err := NewS3(context.Background(), S3Config{Bucket: "backups", PathStyle: true, Endpoint: "https://s3.test", Prefix: "recon/"},
		func(o *s3.Options) {
			o.HTTPClient = &http.Client{Transport: fake}
			o.Credentials = credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")
			o.RetryMaxAttempts = 1
		})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return st
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"fs": func(t *testing.T) Store {
			st, err := NewFilesystem(t.TempDir())
			if err != nil {
				t.Fatalf("NewFilesystem: %v", err)
			}
			return st
		},
		"s3": func(t *testing.T) Store { return newTestS3(t) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := mk(t)

			info, err := st.Put(ctx, "demo/demo_20260309_140500.jser", strings.NewReader("{}"), "application/json")
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Size != 2 {
				t.Fatalf("size = %d", info.Size)
			}
			if _, err := st.Put(ctx, "demo/demo_20260309_140500.jser", strings.NewReader("x"), ""); !errors.Is(err, ErrExists) {
				t.Fatalf("second Put = %v", err)
			}
			if _, err := st.Put(ctx, "other/a.jser", strings.NewReader("abc"), ""); err != nil {
				t.Fatalf("Put other: %v", err)
			}

			_, rc, err := st.Get(ctx, "demo/demo_20260309_140500.jser")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "{}" {
				t.Fatalf("data = %q", data)
			}
			if _, _, err := st.Get(ctx, "demo/missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing = %v", err)
			}

			list, err := st.List(ctx, "demo/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 1 || list[0].Key != "demo/demo_20260309_140500.jser" {
				t.Fatalf("list = %+v", list)
			}

			ok, err := st.Delete(ctx, "other/a.jser")
			if err != nil || !ok {
				t.Fatalf("Delete = %v, %v", ok, err)
			}
			ok, err = st.Delete(ctx, "other/a.jser")
			if err != nil || ok {
				t.Fatalf("second Delete = %v, %v", ok, err)
			}
		})
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	st, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../x", "/abs"} {
		if _, err := st.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
			t.Errorf("Put(%q) succeeded", key)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Options{Driver: "memory"})
	if err != nil || st.Driver() != DriverMemory {
		t.Fatalf("Open memory = %v, %v", st, err)
	}
	st, err = Open(ctx, Options{Root: t.TempDir()})
	if err != nil || st.Driver() != DriverFilesystem {
		t.Fatalf("Open default = %v, %v", st, err)
	}
	if _, err := Open(ctx, Options{Driver: "s3"}); err == nil {
		t.Fatal("s3 without bucket accepted")
	}
	if _, err := Open(ctx, Options{Driver: "tape"}); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
