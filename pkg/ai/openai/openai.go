package openai

import (
	"github.com/OFFIS-RIT/c4designer/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ChatOpenAIClient implements ai.ChatClient against the OpenAI API or any
// endpoint that speaks its chat completions protocol.
type ChatOpenAIClient struct {
	model   string
	chatURL string

	metrics ai.Metrics

	Client *openai.Client
}

// NewChatOpenAIClientParams configures a ChatOpenAIClient. An empty ChatURL
// targets api.openai.com.
type NewChatOpenAIClientParams struct {
	Model   string
	ChatURL string
	ChatKey string
}

var _ ai.ChatClient = (*ChatOpenAIClient)(nil)

func NewChatOpenAIClient(params NewChatOpenAIClientParams) *ChatOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ChatKey),
	}
	if params.ChatURL != "" {
		options = append(options, option.WithBaseURL(params.ChatURL))
	}
	client := openai.NewClient(options...)

	return &ChatOpenAIClient{
		model:   params.Model,
		chatURL: params.ChatURL,
		Client:  &client,
	}
}

func (c *ChatOpenAIClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Get()
}
