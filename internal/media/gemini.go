package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiOCRModel = "gemini-2.5-flash-lite"

const labelPrompt = `Transcribe every line of text printed on this clothing label, top to bottom.

Respond in JSON format with a "lines" array. Each entry has:
- text: the line exactly as printed
- confidence: how sure you are of the transcription, from 0 to 1

Respond ONLY with the JSON object.`

// GeminiRecognizer transcribes label photos with a Gemini vision model.
type GeminiRecognizer struct {
	client *genai.Client
	model  string
}

// NewGeminiRecognizer creates a recognizer authenticated with apiKey.
func NewGeminiRecognizer(ctx context.Context, apiKey string) (*GeminiRecognizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiRecognizer{client: client, model: geminiOCRModel}, nil
}

func labelSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"lines": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"text":       {Type: genai.TypeString},
						"confidence": {Type: genai.TypeNumber},
					},
					Required: []string{"text", "confidence"},
				},
			},
		},
		Required: []string{"lines"},
	}
}

func (g *GeminiRecognizer) Recognize(ctx context.Context, image []byte) ([]TextObservation, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("no image provided")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(labelPrompt),
		{InlineData: &genai.Blob{Data: image, MIMEType: http.DetectContentType(image)}},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   labelSchema(),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	lines, err := parseLabelLines(result.Text())
	if err != nil {
		return nil, err
	}

	if result.UsageMetadata != nil {
		log.Info().
			Str("model", g.model).
			Int("inputTokens", int(result.UsageMetadata.PromptTokenCount)).
			Int("outputTokens", int(result.UsageMetadata.CandidatesTokenCount)).
			Int("lines", len(lines)).
			Msg("label ocr llm call")
	}

	return lines, nil
}

// extractJSONObject extracts a JSON object from text that may be wrapped in
// markdown code fences.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func parseLabelLines(text string) ([]TextObservation, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	var resp struct {
		Lines []TextObservation `json:"lines"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, jsonStr)
	}

	out := resp.Lines[:0]
	for _, l := range resp.Lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		l.Confidence = min(max(l.Confidence, 0), 1)
		out = append(out, l)
	}
	return out, nil
}
