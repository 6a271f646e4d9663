package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/plainclause/contract-analyzer-api/internal/models"
	"github.com/plainclause/contract-analyzer-api/internal/utils"
)

type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.ContractAnalysis, error)
}

// ErrorKind classifies provider failures so the caller can pick a status.
type ErrorKind int

const (
	KindAuth ErrorKind = iota
	KindRateLimited
	KindTimeout
	KindNetwork
	KindBadReply
)

// ProviderError wraps any failure of the outbound completion call. Message
// may contain provider detail; it is meant for logs, never for clients.
type ProviderError struct {
	Kind    ErrorKind
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

const systemPrompt = `You are an assistant specialized in contract law and analysis.
Given the text of a contract, rewrite it as a plain English summary and flag any clauses that are unfavorable or risky for the reader.
Respond with a JSON object containing exactly two keys:
"simplified_contract": a string holding the plain English summary.
"cons": an array of strings, one per unfavorable clause or risk, in the order the clauses appear in the contract. Use an empty array if none are found.
Respond with the JSON object only, no markdown.`

// Keep prompts bounded; very long contracts get truncated.
const maxContractChars = 12000

type openAIAnalyzer struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	logger  *utils.Logger
	client  *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// NewOpenAIAnalyzer builds an Analyzer backed by an OpenAI-compatible
// chat-completions endpoint. baseURL is the API root (e.g.
// "https://api.openai.com/v1"); timeout bounds each provider call.
func NewOpenAIAnalyzer(apiKey, model, baseURL string, timeout time.Duration, logger *utils.Logger) Analyzer {
	return &openAIAnalyzer{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		timeout: timeout,
		logger:  logger,
		client:  &http.Client{},
	}
}

func (a *openAIAnalyzer) Analyze(ctx context.Context, text string) (*models.ContractAnalysis, error) {
	if len(text) > maxContractChars {
		text = text[:maxContractChars] + "..."
	}

	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Please analyze the following contract text:\n\n" + text},
		},
		// Low randomness so repeated calls on the same contract stay close
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ProviderError{Kind: KindBadReply, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &ProviderError{Kind: KindNetwork, Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.classifyTransportError(ctx, err, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Kind: KindNetwork, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("OpenAI API error", "status", resp.StatusCode, "body", string(body))
		return nil, a.classifyStatus(resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &ProviderError{Kind: KindBadReply, Message: fmt.Sprintf("failed to unmarshal response: %v", err)}
	}

	if chatResp.Error != nil {
		a.logger.Error("OpenAI API error", "message", chatResp.Error.Message, "code", chatResp.Error.Code)
		return nil, &ProviderError{Kind: KindBadReply, Message: "provider returned an error payload"}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &ProviderError{Kind: KindBadReply, Message: "no choices in provider response"}
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		return nil, &ProviderError{Kind: KindBadReply, Message: "empty completion content"}
	}

	a.logger.Info("Contract analyzed by provider",
		"model", a.model,
		"reply_length", len(content),
		"latency_ms", time.Since(start).Milliseconds())

	return parseReply(content), nil
}

func (a *openAIAnalyzer) classifyTransportError(ctx context.Context, err error, elapsed time.Duration) *ProviderError {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		a.logger.Error("OpenAI request timed out", "timeout", a.timeout, "elapsed_ms", elapsed.Milliseconds())
		return &ProviderError{Kind: KindTimeout, Message: fmt.Sprintf("provider call timed out after %s", a.timeout)}
	}
	a.logger.Error("OpenAI request failed", "error", err)
	return &ProviderError{Kind: KindNetwork, Message: fmt.Sprintf("provider call failed: %v", err)}
}

func (a *openAIAnalyzer) classifyStatus(status int) *ProviderError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Kind: KindAuth, Message: fmt.Sprintf("provider rejected credentials (status %d)", status)}
	case status == http.StatusTooManyRequests:
		return &ProviderError{Kind: KindRateLimited, Message: "provider rate limit or quota exceeded"}
	default:
		return &ProviderError{Kind: KindBadReply, Message: fmt.Sprintf("provider returned status %d", status)}
	}
}
