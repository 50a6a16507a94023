package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.Arbiter = (*LLMArbiter)(nil)

// LLMDefaultModel is the default model for the LLM arbiter.
const LLMDefaultModel = "claude-3-5-sonnet-20241022"

// Errors returned by the LLM arbiter.
var (
	// ErrEmptyAPIKey is returned when the arbiter is created without an
	// API key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrMalformedRuling is returned when the model response does not
	// contain a parseable WINNER line. The tournament treats this like
	// any other arbitration failure and falls back to confidence
	// comparison.
	ErrMalformedRuling = errors.New("arbiter response missing WINNER line")
)

// LLMConfig defines the configuration parameters for the LLMArbiter.
type LLMConfig struct {
	// APIKey authenticates requests to the Anthropic API.
	APIKey string

	// Model overrides the default arbitration model.
	Model string

	// BaseURL overrides the default API endpoint.
	BaseURL string

	// MaxTokens bounds the ruling length. Default: 1024.
	MaxTokens int

	// RequestsPerMinute rate-limits arbitration calls across the whole
	// arbiter instance. Zero disables limiting.
	RequestsPerMinute int

	// MaxConfidenceDelta clamps the parsed confidence adjustment.
	// Default: 0.2.
	MaxConfidenceDelta float64
}

// LLMArbiter rules on tournament matches by asking a language model to
// compare the two predictions and return a structured ruling:
//
//	WINNER: A|B
//	REASONING: <free text>
//	CONFIDENCE_ADJUSTMENT: <float>
//
// Rulings that cannot be parsed fail with ErrMalformedRuling so the
// tournament falls back deterministically rather than guessing.
//
// The arbiter is safe for concurrent use; the rate limiter is shared
// across concurrent matches.
type LLMArbiter struct {
	client   anthropic.Client
	model    string
	config   LLMConfig
	limiter  *rate.Limiter
	maxDelta float64
}

// NewLLMArbiter creates an LLM-backed arbiter.
func NewLLMArbiter(config LLMConfig) (*LLMArbiter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = LLMDefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	maxDelta := config.MaxConfidenceDelta
	if maxDelta <= 0 {
		maxDelta = 0.2
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return &LLMArbiter{
		client:   anthropic.NewClient(opts...),
		model:    model,
		config:   config,
		limiter:  limiter,
		maxDelta: maxDelta,
	}, nil
}

// Arbitrate asks the model to compare both predictions and parses its
// structured ruling.
func (l *LLMArbiter) Arbitrate(ctx context.Context, a, b domain.Prediction, task string) (domain.ArbitrationResult, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return domain.ArbitrationResult{}, fmt.Errorf("arbitration rate limit wait: %w", err)
		}
	}

	prompt := buildArbitrationPrompt(a, b, task)
	message, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: int64(l.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return domain.ArbitrationResult{}, fmt.Errorf("arbitration request failed: %w", err)
	}

	var response strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			response.WriteString(content.Text)
		}
	}

	return l.parseRuling(response.String())
}

// buildArbitrationPrompt renders the comparison request. The task line
// is omitted when no task context was provided.
func buildArbitrationPrompt(a, b domain.Prediction, task string) string {
	var sb strings.Builder
	sb.WriteString("You are arbitrating between two predictions for the same question.\n")
	if task != "" {
		fmt.Fprintf(&sb, "Question: %s\n", task)
	}
	fmt.Fprintf(&sb, "\nPrediction A (confidence %.2f):\n%s\n", a.Confidence, a.Value.String())
	fmt.Fprintf(&sb, "\nPrediction B (confidence %.2f):\n%s\n", b.Confidence, b.Value.String())
	sb.WriteString(`
Compare the predictions for correctness, reasoning quality, and completeness.
Respond in exactly this format:
WINNER: A or B
REASONING: one or two sentences explaining the ruling
CONFIDENCE_ADJUSTMENT: a float between -0.2 and 0.2 to apply to the winner's confidence
`)
	return sb.String()
}

// parseRuling extracts the structured fields from the model response.
// The reasoning may span multiple lines; the confidence adjustment is
// clamped to the configured bound and defaults to zero when absent or
// unparseable.
func (l *LLMArbiter) parseRuling(response string) (domain.ArbitrationResult, error) {
	var result domain.ArbitrationResult
	var reasoning []string
	inReasoning := false

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "WINNER:"):
			inReasoning = false
			choice := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(trimmed, "WINNER:")))
			switch {
			case strings.HasPrefix(choice, "A"):
				result.Winner = domain.WinnerA
			case strings.HasPrefix(choice, "B"):
				result.Winner = domain.WinnerB
			}
		case strings.HasPrefix(trimmed, "REASONING:"):
			inReasoning = true
			if text := strings.TrimSpace(strings.TrimPrefix(trimmed, "REASONING:")); text != "" {
				reasoning = append(reasoning, text)
			}
		case strings.HasPrefix(trimmed, "CONFIDENCE_ADJUSTMENT:"):
			inReasoning = false
			raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "CONFIDENCE_ADJUSTMENT:"))
			if delta, err := strconv.ParseFloat(raw, 64); err == nil {
				if delta > l.maxDelta {
					delta = l.maxDelta
				}
				if delta < -l.maxDelta {
					delta = -l.maxDelta
				}
				result.ConfidenceDelta = delta
			}
		case inReasoning && trimmed != "":
			reasoning = append(reasoning, trimmed)
		}
	}

	if result.Winner == "" {
		return domain.ArbitrationResult{}, fmt.Errorf("%w: %q", ErrMalformedRuling, truncate(response, 200))
	}
	result.Rationale = strings.Join(reasoning, " ")
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
