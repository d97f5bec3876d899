package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/utils"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel      = "gemini-2.5-pro"
	defaultEmbedModel = "gemini-embedding-001"
	defaultTimeout    = 45 * time.Second

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// Config holds Gemini provider settings.
type Config struct {
	APIKey     string
	Model      string
	EmbedModel string
	MaxRetries int
	// Timeout bounds every single oracle call. A timed out call is an
	// oracle failure, never an infinite wait.
	Timeout time.Duration
}

// Generator wraps the Google GenAI client behind the oracle interfaces.
type Generator struct {
	client     *genai.Client
	modelName  string
	embedModel string
	maxRetries int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client:     client,
		modelName:  model,
		embedModel: embedModel,
		maxRetries: cfg.MaxRetries,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Chat sends the transcript to Gemini under the given system instruction and
// returns the next reply.
func (g *Generator) Chat(ctx context.Context, system string, turns []ai.Turn, temperature float32) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	if len(turns) == 0 {
		return "", errors.New("transcript must not be empty")
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role = genai.RoleUser
		if turn.Speaker == ai.SpeakerAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var output string
	err := g.withRetry(ctx, "chat", func(callCtx context.Context) error {
		resp, err := g.client.Models.GenerateContent(callCtx, g.modelName, contents, cfg)
		if err != nil {
			return classify(err)
		}

		output, err = collectText(resp)
		return err
	})
	if err != nil {
		return "", err
	}

	return output, nil
}

// GenerateJSON sends the prompt to Gemini constrained to a JSON response of
// the given shape and returns the raw response text.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	var output string
	err := g.withRetry(ctx, "generate_json", func(callCtx context.Context) error {
		resp, err := g.client.Models.GenerateContent(callCtx, g.modelName, genai.Text(prompt), cfg)
		if err != nil {
			return classify(err)
		}

		output, err = collectText(resp)
		return err
	})
	if err != nil {
		return "", err
	}

	return output, nil
}

// Embed converts the text into a fixed-length vector.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input must not be empty")
	}

	var vector []float32
	err := g.withRetry(ctx, "embed", func(callCtx context.Context) error {
		resp, err := g.client.Models.EmbedContent(callCtx, g.embedModel, genai.Text(text), nil)
		if err != nil {
			return classify(err)
		}

		if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return fmt.Errorf("%w: empty embedding", ai.ErrOracleMalformed)
		}

		vector = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vector, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

// withRetry runs fn under the per-call timeout, retrying transient failures
// with exponential backoff up to maxRetries extra attempts.
func (g *Generator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt-1, retryBaseDelay, retryMaxDelay)
			g.logger.Debug("retrying oracle call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, delay); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
	}

	return lastErr
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrOracleTimeout, err)
	}
	return fmt.Errorf("%w: %v", ai.ErrOracleUnavailable, err)
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ai.ErrOracleUnavailable)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", fmt.Errorf("%w: gemini api returned empty response", ai.ErrOracleUnavailable)
	}

	return output, nil
}
