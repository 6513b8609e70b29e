// oracle.go is the scoring oracle adapter: an OpenRouter-style chat
// completions client that scores one clip at a time.
//
// OpenRouter provides a unified API for multiple LLM providers (OpenAI,
// Anthropic, Google, etc.) using a single API key. The request format
// follows the OpenAI chat completions standard.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// ScoreResult is the oracle's verdict on one clip. All numeric fields
// are clamped to [0,1] by the parser; Category is always a member of
// the closed set (unknown labels are coerced to reject).
type ScoreResult struct {
	Category           models.Category `json:"category"`
	Subcategory        string          `json:"subcategory"`
	Confidence         float64         `json:"confidence"`
	CompilationScore   float64         `json:"compilation_score"`
	VisualIndependence float64         `json:"visual_independence"`
	Reasoning          string          `json:"reasoning"`
}

// Oracle scores a clip from its text metadata.
//
// Go Pattern: Accept interfaces, return structs. The service depends on
// this one-method interface so tests can substitute a fake and assert
// the oracle was (or wasn't) called — no HTTP server needed.
type Oracle interface {
	Score(ctx context.Context, item *models.Item) (*ScoreResult, error)
}

const systemPrompt = `You are a content classifier for short-form video compilations. Categorize clips into exactly one of these categories:

1. fails - accidents, mishaps, physical comedy, things going wrong
2. comedy - funny skits, pranks, unexpected humor, reactions
3. reject - anything else (dance, ads, narrative content, lifestyle)

For accepted clips, also assign a short subcategory (e.g. "pet_fails", "sports_fails", "pranks") and score three dimensions:
- confidence: 0.0-1.0, how certain you are about the category
- compilation_score: 0.0-1.0, how well the clip works standalone between unrelated clips
- visual_independence: 0.0-1.0, how funny the clip is on mute (the "mute test")

Respond with JSON only:
{"category": "...", "subcategory": "...", "confidence": 0.0, "compilation_score": 0.0, "visual_independence": 0.0, "reasoning": "brief explanation"}

Rules:
- Use confidence 0.7+ for clear matches, <0.3 only if genuinely ambiguous
- Clips that need audio or prior context to land must get low visual_independence
- When in doubt between an accepted category and reject, prefer reject`

// --- OpenRouter API types ---
// These match the OpenAI chat completions format used by OpenRouter.

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ChatOracle scores clips through an OpenRouter-compatible endpoint.
type ChatOracle struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewChatOracle creates the production oracle.
func NewChatOracle(apiKey, model string) *ChatOracle {
	return &ChatOracle{
		apiKey: apiKey,
		model:  model,
		// Go Pattern: Always configure timeouts on HTTP clients.
		// The default http.Client has NO timeout — requests can hang forever!
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // LLMs can be slow
		},
	}
}

// Score sends the clip's text context to the model and parses the verdict.
// A transport or API error is returned as an error (the caller records the
// item as FAILED); a malformed model response is NOT an error — the parser
// coerces it to a reject verdict, because bad model output is a content
// judgment problem, not an infrastructure problem.
func (o *ChatOracle) Score(ctx context.Context, item *models.Item) (*ScoreResult, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("oracle API key not configured; set ORACLE_API_KEY")
	}

	reqBody := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(item)},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		"https://openrouter.ai/api/v1/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close() // Go Pattern: ALWAYS close response bodies!

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("oracle error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	return ParseScoreResult(chatResp.Choices[0].Message.Content), nil
}

// buildUserPrompt assembles the clip's text context for the model.
func buildUserPrompt(item *models.Item) string {
	var parts []string

	if item.Description != "" {
		desc := item.Description
		if len(desc) > 500 {
			desc = desc[:500]
		}
		parts = append(parts, "Description: "+desc)
	}
	if len(item.Hashtags) > 0 {
		tags := item.Hashtags
		if len(tags) > 20 {
			tags = tags[:20]
		}
		parts = append(parts, "Hashtags: "+strings.Join(tags, " "))
	}
	if item.Author != "" {
		parts = append(parts, "Author: @"+item.Author)
	}

	if len(parts) == 0 {
		return "No description available"
	}
	return strings.Join(parts, "\n")
}

// ParseScoreResult turns raw model output into a ScoreResult. It never
// fails: malformed JSON, unknown categories, and out-of-range numbers all
// degrade to a conservative reject verdict with a diagnostic reason.
func ParseScoreResult(content string) *ScoreResult {
	text := stripCodeFence(strings.TrimSpace(content))

	var raw struct {
		Category           string  `json:"category"`
		Subcategory        string  `json:"subcategory"`
		Confidence         float64 `json:"confidence"`
		CompilationScore   float64 `json:"compilation_score"`
		VisualIndependence float64 `json:"visual_independence"`
		Reasoning          string  `json:"reasoning"`
	}

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		// Models sometimes wrap JSON in prose; try the first balanced
		// { ... } block before giving up.
		if inner, ok := extractJSONObject(text); ok {
			if err2 := json.Unmarshal([]byte(inner), &raw); err2 != nil {
				return rejectResult(fmt.Sprintf("unparseable response: %v", err2))
			}
		} else {
			return rejectResult(fmt.Sprintf("unparseable response: %v", err))
		}
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !models.ValidCategory(category) && category != models.CategoryReject {
		return rejectResult(fmt.Sprintf("unknown category %q", raw.Category))
	}

	return &ScoreResult{
		Category:           category,
		Subcategory:        strings.ToLower(strings.TrimSpace(raw.Subcategory)),
		Confidence:         clamp01(raw.Confidence),
		CompilationScore:   clamp01(raw.CompilationScore),
		VisualIndependence: clamp01(raw.VisualIndependence),
		Reasoning:          raw.Reasoning,
	}
}

// rejectResult is the conservative verdict for unusable model output.
func rejectResult(reason string) *ScoreResult {
	return &ScoreResult{
		Category:  models.CategoryReject,
		Reasoning: reason,
	}
}

// stripCodeFence removes a surrounding markdown ```json fence if present.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) < 2 {
		return text
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

// extractJSONObject finds the first balanced top-level {...} in text.
func extractJSONObject(text string) (string, bool) {
	start, depth := -1, 0
	for i, c := range text {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// clamp01 clamps a score to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
