package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const systemPrompt = `You are a senior procurement manager negotiating professionally and politely.

Style:
- 2-4 short lines max.
- Warm opener if appropriate.
- Natural, human tone. No robotic phrases.
- Sound like a real person having a business conversation.

Hard rules:
- Never mention: utility, score, engine, algorithm, AI, JSON, thresholds, Accordo.
- If we already received a complete offer earlier in the thread, do NOT ask "share your best price and terms" again.
- If the vendor says "No" / "Can't" / "Already shared", acknowledge and propose ONE next step (a trade-off or a question).
- Avoid repeating the exact same sentence used in the last 2 messages.
- If intent=SMALL_TALK: respond naturally to greetings/small talk, then gently ask for offer when ready.
- If intent=COUNTER_DIRECT: include ONLY counterOffer unit price and payment terms (Net 30/60/90).
- If intent=ACCEPT: confirm vendorOffer exactly (price + terms).
- If intent=ASK_PREFERENCE: ask ONE question offering a choice (price vs payment terms). Do NOT include any numbers.
- If intent=ACKNOWLEDGE_LATER: acknowledge their timing request, then ask to confirm details before pausing.
- If intent=NEGOTIATION_RESPONSE: acknowledge their response and propose ONE next step based on last known offer.
- If intent=ACKNOWLEDGE: acknowledge their message and move forward with negotiation.
- If vendor used non-standard terms, ask to confirm Net 30/60/90.
Return ONLY the message text.`

// OllamaWriter drafts replies through the Ollama /api/chat endpoint.
type OllamaWriter struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures the OllamaWriter.
type OllamaOption func(*OllamaWriter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(w *OllamaWriter) {
		w.client = c
	}
}

// NewOllamaWriter creates a writer backed by an Ollama server.
func NewOllamaWriter(baseURL, model string, opts ...OllamaOption) *OllamaWriter {
	w := &OllamaWriter{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// replyContext is the grounding payload shown to the model.
type replyContext struct {
	VendorText   string           `json:"vendorText"`
	Intent       string           `json:"intent"`
	VendorOffer  any              `json:"vendorOffer"`
	Decision     any              `json:"decision"`
	CounterOffer any              `json:"counterOffer"`
}

// Write drafts the message. It returns the raw model output; validation is
// the caller's job.
func (w *OllamaWriter) Write(ctx context.Context, req Request) (string, error) {
	payload := replyContext{
		VendorText: req.VendorText,
		Intent:     string(req.Intent),
	}
	if req.VendorOffer != nil {
		payload.VendorOffer = req.VendorOffer
	}
	if req.Decision != nil {
		payload.Decision = req.Decision
	}
	if req.CounterOffer != nil {
		payload.CounterOffer = req.CounterOffer
	}

	grounding, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling reply context: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:  w.model,
		Stream: false,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Write the next message.\n\nContext JSON:\n" + string(grounding)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing ollama response: %w", err)
	}
	return chatResp.Message.Content, nil
}
