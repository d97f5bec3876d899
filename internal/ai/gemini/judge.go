package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/logger"
	"github.com/spigell/hiregate/internal/profile"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	Model() string
}

//go:embed prompts/personality.md
var personalityTemplate string

//go:embed prompts/tradeoffs.md
var tradeoffsTemplate string

const defaultMaxLogLength = 200

var judgmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":     {Type: genai.TypeNumber, Description: "compatibility in [0,1]"},
		"rationale": {Type: genai.TypeString},
	},
	Required: []string{"score", "rationale"},
}

// Judge scores personality and trade-off compatibility through Gemini.
type Judge struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator jsonGenerator, maxLogLength int, log *zap.Logger) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Judge{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// JudgePersonality compares the role's personality traits against the
// candidate's vibe description.
func (j *Judge) JudgePersonality(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*ai.Judgment, error) {
	if role == nil || cand == nil {
		return nil, fmt.Errorf("role and candidate are required")
	}

	rolePayload := map[string]any{
		"title":              role.Title,
		"personality_traits": role.PersonalityTraits,
	}
	candPayload := map[string]any{
		"personality_vibe": cand.Vibe,
		"summary":          cand.Summary,
	}

	return j.judge(ctx, "personality", personalityTemplate, role.ID, cand.ID, rolePayload, candPayload)
}

// JudgeTradeOffs scores how well the candidate satisfies the role's stated
// trade-off tolerances.
func (j *Judge) JudgeTradeOffs(ctx context.Context, role *profile.Role, cand *profile.Candidate) (*ai.Judgment, error) {
	if role == nil || cand == nil {
		return nil, fmt.Errorf("role and candidate are required")
	}

	rolePayload := map[string]any{
		"title":      role.Title,
		"trade_offs": role.TradeOffs,
	}
	candPayload := map[string]any{
		"summary":     cand.Summary,
		"skills":      cand.Skills,
		"preferences": cand.Preferences,
	}

	return j.judge(ctx, "tradeoffs", tradeoffsTemplate, role.ID, cand.ID, rolePayload, candPayload)
}

func (j *Judge) judge(ctx context.Context, kind, template, roleID, candID string, rolePayload, candPayload map[string]any) (*ai.Judgment, error) {
	roleJSON, err := json.MarshalIndent(rolePayload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal role payload: %w", err)
	}

	candJSON, err := json.MarshalIndent(candPayload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := strings.ReplaceAll(template, "{{ROLE_JSON}}", string(roleJSON))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATE_JSON}}", string(candJSON))

	j.logger.Debug("gemini judgment request",
		zap.String(logger.FieldOracle, kind),
		zap.String("role_id", roleID),
		zap.String("candidate_id", candID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateJSON(ctx, prompt, judgmentSchema)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini judgment response",
		zap.String(logger.FieldOracle, kind),
		zap.String("role_id", roleID),
		zap.String("candidate_id", candID),
		zap.String("response_preview", logger.TruncateForLog(raw, j.maxLogLen)),
	)

	judgment, err := parseJudgment(raw)
	if err != nil {
		return nil, err
	}

	judgment.Raw = raw
	return judgment, nil
}

func parseJudgment(raw string) (*ai.Judgment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse judgment: %v", ai.ErrOracleMalformed, err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("%w: judgment has no numeric score", ai.ErrOracleMalformed)
	}

	return &ai.Judgment{
		Score:     clamp01(score),
		Rationale: coerceString(data["rationale"]),
	}, nil
}
