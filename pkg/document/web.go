package document

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const fetchCacheSize = 128

// Fetcher downloads requirement documents from the web. HTML pages are
// reduced to their readable article text. The most recent results are cached
// per URL.
type Fetcher struct {
	client *http.Client
	cache  *lru.Cache[string, string]
	group  singleflight.Group
}

// NewFetcher returns a Fetcher using client, or a client with a 30 second
// timeout when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, string](fetchCacheSize)
	return &Fetcher{
		client: client,
		cache:  cache,
	}
}

// Fetch returns the text behind rawURL. Only http and https URLs are
// accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrUnsupported, rawURL)
	}
	key := u.String()

	if cached, ok := f.cache.Get(key); ok {
		return cached, nil
	}

	result, err, _ := f.group.Do(key, func() (any, error) {
		text, err := f.fetch(ctx, u)
		if err != nil {
			return "", err
		}
		f.cache.Add(key, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (f *Fetcher) fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, MaxDocumentSize+1)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var text string
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err = htmlText(body, u)
	default:
		content, readErr := io.ReadAll(body)
		if readErr != nil {
			return "", fmt.Errorf("failed to read body: %w", readErr)
		}
		if len(content) > MaxDocumentSize {
			return "", ErrTooLarge
		}
		name := path.Base(u.Path)
		if strings.HasPrefix(mediaType, "text/") {
			name = ""
		}
		return Text(name, content)
	}
	if err != nil {
		return "", err
	}
	return normalize(text)
}

// htmlText extracts the main article of an HTML page. pageURL resolves
// relative links and may be nil for uploaded files.
func htmlText(r io.Reader, pageURL *url.URL) (string, error) {
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "file", Path: "/"}
	}
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}
	return builder.String(), nil
}
