package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/hiregate/internal/ai"
	"github.com/spigell/hiregate/internal/logger"
	"github.com/spigell/hiregate/internal/profile"
	"github.com/xeipuuv/gojsonschema"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

//go:embed prompts/role_extract.md
var roleExtractTemplate string

//go:embed prompts/candidate_extract.md
var candidateExtractTemplate string

//go:embed schemas/role.schema.json
var roleJSONSchema string

//go:embed schemas/candidate.schema.json
var candidateJSONSchema string

var roleGenSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":                    {Type: genai.TypeString},
		"must_have_skills":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"nice_to_have_skills":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"personality_traits":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"trade_offs":               {Type: genai.TypeString},
		"application_instructions": {Type: genai.TypeString},
	},
}

var candidateGenSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"contact":          {Type: genai.TypeString},
		"summary":          {Type: genai.TypeString},
		"skills":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"preferences":      {Type: genai.TypeString},
		"personality_vibe": {Type: genai.TypeString},
	},
}

// Extractor turns a completed intake transcript into a structured profile.
// Output is validated against a JSON schema before any field is trusted;
// required-field gaps are left to the caller, which re-asks the matching
// open question instead of failing the session.
type Extractor struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator jsonGenerator, maxLogLength int, log *zap.Logger) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (e *Extractor) ExtractRole(ctx context.Context, transcript string) (*profile.Role, error) {
	data, err := e.extract(ctx, "role", roleExtractTemplate, roleGenSchema, roleJSONSchema, transcript)
	if err != nil {
		return nil, err
	}

	var role profile.Role
	if err := decode(data, &role); err != nil {
		return nil, err
	}

	role.ID = profile.NewRoleID()
	return &role, nil
}

func (e *Extractor) ExtractCandidate(ctx context.Context, transcript string) (*profile.Candidate, error) {
	data, err := e.extract(ctx, "candidate", candidateExtractTemplate, candidateGenSchema, candidateJSONSchema, transcript)
	if err != nil {
		return nil, err
	}

	var cand profile.Candidate
	if err := decode(data, &cand); err != nil {
		return nil, err
	}

	cand.ID = profile.NewCandidateID()
	return &cand, nil
}

func (e *Extractor) extract(ctx context.Context, kind, template string, genSchema *genai.Schema, jsonSchema, transcript string) (map[string]any, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("transcript must not be empty")
	}

	prompt := strings.ReplaceAll(template, "{{TRANSCRIPT}}", transcript)

	e.logger.Debug("gemini extraction request",
		zap.String(logger.FieldOracle, "extraction"),
		zap.String("profile_kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := e.generator.GenerateJSON(ctx, prompt, genSchema)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini extraction response",
		zap.String(logger.FieldOracle, "extraction"),
		zap.String("profile_kind", kind),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	return validateAgainstSchema(raw, jsonSchema)
}

// validateAgainstSchema checks the raw oracle output against the embedded
// JSON schema and returns the parsed document.
func validateAgainstSchema(raw, schema string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrOracleMalformed, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ai.ErrOracleMalformed, strings.Join(details, "; "))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrOracleMalformed, err)
	}

	return data, nil
}

func decode(data map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("%w: decode profile: %v", ai.ErrOracleMalformed, err)
	}

	return nil
}
