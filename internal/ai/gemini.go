package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// modelRotation lists fallback models per key, ordered by reliability and
// quota. A key's configured model is always tried first.
var modelRotation = []string{"gemini-1.5-pro", "gemini-1.5-pro-002", "gemini-pro"}

const (
	maxAttemptsPerModel = 2
	retryDelay          = 500 * time.Millisecond
)

// retryAction is the decision after a failed model call.
type retryAction int

const (
	// actionNextKey abandons the key immediately. Quota errors apply to
	// the key, so retrying any model on it is wasted time.
	actionNextKey retryAction = iota
	// actionRetrySameModel waits retryDelay and calls the same key and
	// model again. Only transient overload earns this.
	actionRetrySameModel
	// actionNextModel moves to the next model on the same key.
	actionNextModel
)

// classifyFailure maps a call failure to the next state of the retry loop.
func classifyFailure(err error, attempt int) retryAction {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource_exhausted"):
		return actionNextKey
	case strings.Contains(msg, "503") && attempt < maxAttemptsPerModel:
		return actionRetrySameModel
	default:
		return actionNextModel
	}
}

// GeminiProvider extracts invoice data through the Gemini API with failover
// across up to three API keys. Every call shuffles the key order so load
// spreads evenly.
type GeminiProvider struct {
	keys    []models.GeminiKey
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGeminiProvider builds the provider from the configured keys.
func NewGeminiProvider(keys []models.GeminiKey) (*GeminiProvider, error) {
	cleaned := make([]models.GeminiKey, 0, len(keys))
	for _, k := range keys {
		k.APIKey = strings.Trim(strings.TrimSpace(k.APIKey), `"'`)
		if k.APIKey == "" {
			continue
		}
		if k.Model == "" {
			k.Model = modelRotation[0]
		}
		cleaned = append(cleaned, k)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no Gemini API keys configured (set GOOGLE_API_KEY)")
	}
	return &GeminiProvider{
		keys:    cleaned,
		baseURL: geminiBaseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
		log:     log.With().Str("component", "gemini").Logger(),
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Extract runs the failover loop: shuffled keys, model rotation per key,
// one delayed retry per model on transient overload. Exhaustion returns
// ErrBusy, or ErrUnreadable when the models answered but every response
// was rejected and no quota or overload error was seen.
func (g *GeminiProvider) Extract(ctx context.Context, fileData []byte, mimeType string) (*models.ExtractedInvoiceData, error) {
	content := base64.StdEncoding.EncodeToString(fileData)

	keys := make([]models.GeminiKey, len(g.keys))
	copy(keys, g.keys)
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	g.log.Info().Int("keys", len(keys)).Msg("starting extraction")

	sawRejected := false
	sawOverload := false

keyLoop:
	for keyIdx, key := range keys {
		for _, model := range modelsFor(key) {
			for attempt := 1; attempt <= maxAttemptsPerModel; attempt++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				text, err := g.generate(ctx, key.APIKey, model, content, mimeType)
				if err == nil {
					data, parseErr := parseModelResponse(text)
					if parseErr == nil {
						g.log.Info().Int("key", keyIdx+1).Str("model", model).Msg("extraction succeeded")
						return data, nil
					}
					err = parseErr
					sawRejected = true
				}

				g.log.Warn().Err(err).Int("key", keyIdx+1).Str("model", model).Int("attempt", attempt).Msg("model call failed")

				switch classifyFailure(err, attempt) {
				case actionNextKey:
					sawOverload = true
					continue keyLoop
				case actionRetrySameModel:
					sawOverload = true
					if serr := g.sleep(ctx, retryDelay); serr != nil {
						return nil, serr
					}
					continue
				case actionNextModel:
				}
				break
			}
		}
	}

	if sawRejected && !sawOverload {
		return nil, ErrUnreadable
	}
	return nil, ErrBusy
}

// modelsFor puts the key's configured model first, followed by the rotation
// without duplicates.
func modelsFor(key models.GeminiKey) []string {
	out := []string{key.Model}
	for _, m := range modelRotation {
		if m != key.Model {
			out = append(out, m)
		}
	}
	return out
}

// generate calls the REST endpoint first and falls back to the official SDK
// when the HTTP transport itself fails. API errors (non-2xx) are returned
// directly so the retry loop can classify them.
func (g *GeminiProvider) generate(ctx context.Context, apiKey, model, content, mimeType string) (string, error) {
	text, err := g.generateREST(ctx, apiKey, model, content, mimeType)
	if err == nil {
		return text, nil
	}
	if _, isAPI := errStatus(err); isAPI {
		return "", err
	}

	g.log.Warn().Err(err).Str("model", model).Msg("REST call failed, falling back to SDK")
	return g.generateSDK(ctx, apiKey, model, content, mimeType)
}

type restError struct {
	status int
	body   string
}

func (e *restError) Error() string {
	return fmt.Sprintf("gemini api error: %d - %s", e.status, e.body)
}

func errStatus(err error) (int, bool) {
	if re, ok := err.(*restError); ok {
		return re.status, true
	}
	return 0, false
}

func (g *GeminiProvider) generateREST(ctx context.Context, apiKey, model, content, mimeType string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"inlineData": map[string]string{"mimeType": mimeType, "data": content}},
				{"text": invoiceExtractionPrompt},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":     0.05,
			"topK":            40,
			"topP":            0.95,
			"maxOutputTokens": 8192,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &restError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiProvider) generateSDK(ctx context.Context, apiKey, model, content, mimeType string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", err
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.05)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(8192)

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: raw},
		genai.Text(invoiceExtractionPrompt),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}
	if text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(text), nil
	}
	return "", fmt.Errorf("gemini returned a non-text part")
}
