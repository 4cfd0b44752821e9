// Package ai turns free text into a structured expense guess via an
// OpenAI-compatible chat-completions endpoint.
//
// Every field of the result is best-effort. Callers must treat the guess as
// an untrusted suggestion requiring user confirmation before save.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ParsedExpense is the model's structured guess. Nil means the model could
// not extract the field.
type ParsedExpense struct {
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Merchant    *string  `json:"merchant"`
	Date        *string  `json:"date"` // YYYY-MM-DD
	Time        *string  `json:"time"` // HH:mm
}

var ErrNoContent = errors.New("no content returned from AI")

type Parser struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	now     func() time.Time
}

func NewParser(baseURL, apiKey, model string) *Parser {
	return &Parser{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model          string        `json:"model"`
		Messages       []chatMessage `json:"messages"`
		Temperature    float64       `json:"temperature"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}

	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

// Parse extracts expense details from the user's input.
func (p *Parser) Parse(ctx context.Context, text string) (ParsedExpense, error) {
	if strings.TrimSpace(text) == "" {
		return ParsedExpense{}, errors.New("input text is required")
	}

	prompt := fmt.Sprintf(`Extract the following expense details from the user's input:
- Amount (number)
- Currency (always INR)
- Category (e.g., Food, Transport, Shopping, Bills, etc.)
- Description (brief summary)
- Merchant (if applicable)
- Date (YYYY-MM-DD, assume current year if not specified. Today is %s)
- Time (HH:mm, if specified)

User Input: %q

Return ONLY a valid JSON object with keys: amount, currency, category, description, merchant, date, time.
Do not add markdown formatting.`, p.now().Format("2006-01-02"), text)

	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expense tracking assistant. Parse the user input into structured JSON data."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}
	reqBody.ResponseFormat.Type = "json_object"

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return ParsedExpense{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return ParsedExpense{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return ParsedExpense{}, fmt.Errorf("call AI endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ParsedExpense{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ParsedExpense{}, fmt.Errorf("AI endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return ParsedExpense{}, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return ParsedExpense{}, ErrNoContent
	}

	var parsed ParsedExpense
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &parsed); err != nil {
		return ParsedExpense{}, fmt.Errorf("decode parsed expense: %w", err)
	}

	slog.InfoContext(ctx, "Parsed expense from free text",
		"has_amount", parsed.Amount != nil,
		"category", parsed.Category)

	return parsed, nil
}
