package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`, body)
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestTextDocx(t *testing.T) {
	content := docx(t,
		`<w:p><w:r><w:t>The shop has a web app.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Orders are </w:t></w:r><w:del><w:r><w:t>never</w:t></w:r></w:del><w:r><w:t>stored.</w:t></w:r></w:p>`+
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Role</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	got, err := Text("requirements.DOCX", content)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	want := "The shop has a web app.\nOrders are stored.\nName\tRole"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content []byte
		want    string
		err     error
	}{
		{"plain", "notes.txt", []byte("\xef\xbb\xbfline one\r\n\r\n\r\n\r\nline two\n"), "line one\n\nline two", nil},
		{"no extension", "README", []byte("  text  "), "text", nil},
		{"markdown", "shop.md", []byte("# Shop\n"), "# Shop", nil},
		{"blank", "empty.txt", []byte(" \n\t"), "", ErrEmpty},
		{"binary", "data.txt", []byte{0xff, 0xfe, 0x00}, "", ErrUnsupported},
		{"unknown type", "slides.pptx", []byte("x"), "", ErrUnsupported},
		{"broken docx", "broken.docx", []byte("not a zip"), "", ErrUnsupported},
		{"too large", "big.txt", bytes.Repeat([]byte("a"), MaxDocumentSize+1), "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.file, tt.content)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

const articlePage = `<!DOCTYPE html>
<html><head><title>Shop requirements</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Shop requirements</h1>
<p>The online shop is used by customers who browse the catalogue and place orders through a web application running in their browser.</p>
<p>The web application stores every order in a relational orders database and publishes an event to the message queue once payment has been confirmed by the external payment provider.</p>
<p>A reporting service consumes these events, aggregates sales figures per day and exposes them to the back office staff through a small dashboard.</p>
</article>
<footer>Copyright notice</footer>
</body></html>`

func TestFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, articlePage)
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "The shop has a web app.\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	ctx := context.Background()

	text, err := f.Fetch(ctx, srv.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch(page) error = %v", err)
	}
	if !strings.Contains(text, "relational orders database") {
		t.Errorf("article text missing body: %q", text)
	}

	text, err = f.Fetch(ctx, srv.URL+"/plain")
	if err != nil || text != "The shop has a web app." {
		t.Errorf("Fetch(plain) = %q, %v", text, err)
	}

	before := hits.Load()
	if _, err := f.Fetch(ctx, srv.URL+"/plain"); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if hits.Load() != before {
		t.Errorf("second fetch hit the server")
	}

	if _, err := f.Fetch(ctx, srv.URL+"/missing"); err == nil {
		t.Errorf("expected error for 404")
	}
}

func TestFetcherRejectsURLs(t *testing.T) {
	f := NewFetcher(nil)
	for _, raw := range []string{"", "file:///etc/passwd", "ftp://example.com/x", "http://"} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Fetch(%q) err = %v, want ErrUnsupported", raw, err)
		}
	}
}
