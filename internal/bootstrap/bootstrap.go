// Package bootstrap builds the shared dependencies of the server and the
// worker from environment variables.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/ai"
	oai "github.com/OFFIS-RIT/c4designer/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/c4designer/pkg/ai/openai"
	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/extract"
	"github.com/OFFIS-RIT/c4designer/pkg/inference"
	"github.com/OFFIS-RIT/c4designer/pkg/inference/hf"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/logger/console"
	storepgx "github.com/OFFIS-RIT/c4designer/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitLogger installs the console logger. DEBUG enables debug output and
// LOG_JSON switches to JSON lines.
func InitLogger(prefix string) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: prefix,
	}))
}

// RelationLabels are the class names of the relation model, in label order.
func RelationLabels() []string {
	labels := make([]string, len(c4.RelationTypes))
	for i, r := range c4.RelationTypes {
		labels[i] = string(r)
	}
	return labels
}

// NewPipeline returns a pipeline whose models are reached through the
// inference server at INFERENCE_URL. The client is created on first use.
func NewPipeline() *extract.Pipeline {
	return extract.NewPipeline(extract.NewPipelineParams{
		Loader: func(ctx context.Context) (inference.TokenClassifier, inference.SequenceClassifier, error) {
			client, err := hf.NewClient(hf.NewClientParams{
				BaseURL:               util.GetEnv("INFERENCE_URL"),
				APIKey:                util.GetEnv("INFERENCE_KEY"),
				NERModel:              util.GetEnvString("NER_MODEL", "c4-ner"),
				REModel:               util.GetEnvString("RE_MODEL", "c4-relations"),
				Labels:                RelationLabels(),
				MaxConcurrentRequests: int64(util.GetEnvInt("INFERENCE_PARALLEL_REQ", 8)),
				Timeout:               util.GetEnvDuration("INFERENCE_TIMEOUT", 60*time.Second),
			})
			if err != nil {
				return nil, nil, err
			}
			return client, client, nil
		},
		Threshold:        util.GetEnvFloat("RELATION_THRESHOLD", extract.DefaultThreshold),
		MaxContextTokens: util.GetEnvInt("RELATION_MAX_TOKENS", extract.DefaultMaxContextTokens),
		Encoding:         util.GetEnvString("TOKEN_ENCODER", extract.DefaultEncoding),
	})
}

// NewChatClient selects the chat adapter named by AI_ADAPTER. It returns
// nil when no chat model is configured.
func NewChatClient() (ai.ChatClient, error) {
	model := util.GetEnv("AI_CHAT_MODEL")
	if model == "" {
		return nil, nil
	}

	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := oai.NewChatOllamaClient(oai.NewChatOllamaClientParams{
			Model:                 model,
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			return nil, fmt.Errorf("create Ollama client: %w", err)
		}
		return client, nil
	case "openai":
		return gai.NewChatOpenAIClient(gai.NewChatOpenAIClientParams{
			Model:   model,
			ChatURL: util.GetEnv("AI_CHAT_URL"),
			ChatKey: util.GetEnv("AI_CHAT_KEY"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// AssistantOptions returns the generation options for the assistant set
// through AI_TEMPERATURE and AI_THINKING. Unset keys keep the adapter
// defaults.
func AssistantOptions() []ai.GenerateOption {
	var opts []ai.GenerateOption
	if util.GetEnv("AI_TEMPERATURE") != "" {
		opts = append(opts, ai.WithTemperature(util.GetEnvFloat("AI_TEMPERATURE", 0.1)))
	}
	if thinking := util.GetEnv("AI_THINKING"); thinking != "" {
		opts = append(opts, ai.WithThinking(thinking))
	}
	return opts
}

// NewDatabase connects to DATABASE_URL and applies the migrations found in
// MIGRATIONS_PATH.
func NewDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := util.GetEnv("DATABASE_URL")
	if err := storepgx.Migrate(dsn, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
