package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/OFFIS-RIT/c4designer/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
)

// ChatOllamaClient implements ai.ChatClient against an Ollama server.
type ChatOllamaClient struct {
	model string

	reqLock *semaphore.Weighted
	metrics ai.Metrics

	encOnce sync.Once
	enc     *tiktoken.Tiktoken

	Client *api.Client
}

// NewChatOllamaClientParams configures a ChatOllamaClient. An empty BaseURL
// uses the Ollama default.
type NewChatOllamaClientParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

var _ ai.ChatClient = (*ChatOllamaClient)(nil)

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

func NewChatOllamaClient(params NewChatOllamaClientParams) (*ChatOllamaClient, error) {
	var u *url.URL
	if params.BaseURL != "" {
		parsed, err := url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
		u = parsed
	} else {
		env, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		return newClient(params, env), nil
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{headers: headers, rt: http.DefaultTransport},
	}
	return newClient(params, api.NewClient(u, httpClient)), nil
}

func newClient(params NewChatOllamaClientParams, cli *api.Client) *ChatOllamaClient {
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}
	return &ChatOllamaClient{
		model:   params.Model,
		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),
		Client:  cli,
	}
}

// encoder is only used to size the context window. When it cannot be
// loaded the server default applies.
func (c *ChatOllamaClient) encoder() *tiktoken.Tiktoken {
	c.encOnce.Do(func() {
		c.enc, _ = tiktoken.GetEncoding("o200k_base")
	})
	return c.enc
}

func (c *ChatOllamaClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Get()
}
