package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiDetector implements MaterialDetector with Gemini in JSON mode.
type GeminiDetector struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiDetector(ctx context.Context, apiKey, modelName string) (*GeminiDetector, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt()))

	return &GeminiDetector{client: client, model: model}, nil
}

func (g *GeminiDetector) Close() error {
	return g.client.Close()
}

func (g *GeminiDetector) Detect(ctx context.Context, description string) (*Detection, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("gemini: empty description")
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text("Items: "+description))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: no response candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return parseDetection(text.String())
}

func parseDetection(raw string) (*Detection, error) {
	cleaned := cleanJSONString(raw)
	var d Detection
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("gemini: parse response: %w", err)
	}
	d.Sanitize()
	return &d, nil
}

func systemPrompt() string {
	names := make([]string, 0, len(points.Materials()))
	for _, m := range points.Materials() {
		names = append(names, string(m))
	}
	return fmt.Sprintf(`You classify household recyclables for a pickup service.
Return ONLY JSON of the form:
{"items":[{"materialType":"<type>","quantity":<int>=1>,"weightKg":<number or 0 if unknown>}],"estimatedTotalKg":<number>,"note":"<short note>"}
materialType MUST be one of: %s.
Group identical materials into one item. Skip anything that is not recyclable.`, strings.Join(names, ", "))
}

// cleanJSONString strips markdown code fences if the model added them.
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
