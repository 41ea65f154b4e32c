package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studymate/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

var (
	// ErrProviderUnavailable means no model provider is configured at all.
	ErrProviderUnavailable = errors.New("model provider unavailable")
	// ErrModelProvider wraps failures of a configured provider (network,
	// auth, timeout).
	ErrModelProvider = errors.New("model provider error")
)

// Provider generates one assistant reply from a conversation transcript.
type Provider interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// Unavailable is the Provider used when no model is configured. Every call
// fails with ErrProviderUnavailable so the caller falls back to the
// deterministic path.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, []*schema.Message) (string, error) {
	return "", ErrProviderUnavailable
}

type einoProvider struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewProvider builds the chat model named by cfg.Chatbot.Provider. An empty
// provider name yields Unavailable rather than an error.
func NewProvider(cfg *config.Config) (Provider, error) {
	name := cfg.Chatbot.Provider
	if name == "" {
		return Unavailable{}, nil
	}
	provCfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch name {
	case "openai":
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(context.Background(), &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(context.Background(), &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", name, err)
	}

	timeout := time.Duration(cfg.Chatbot.ModelTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &einoProvider{chatModel: chatModel, timeout: timeout}, nil
}

func (p *einoProvider) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelProvider, err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("%w: empty response", ErrModelProvider)
	}
	return resp.Content, nil
}
