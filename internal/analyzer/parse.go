package analyzer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/plainclause/contract-analyzer-api/internal/models"
)

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// parseReply turns the raw completion content into a ContractAnalysis.
//
// Convention: the model is asked for a JSON object with a string
// "simplified_contract" and a string array "cons", optionally wrapped in a
// markdown code fence. If the content is not parseable JSON, or carries no
// usable summary, the whole reply becomes the summary and cons stays empty:
// the contract was legitimately read, so the user still gets partial value.
// A "cons" value of the wrong shape is treated as absent.
func parseReply(content string) *models.ContractAnalysis {
	fallback := &models.ContractAnalysis{
		SimplifiedContract: strings.TrimSpace(content),
		Cons:               []string{},
	}

	raw := stripCodeFence(strings.TrimSpace(content))

	var reply struct {
		SimplifiedContract string          `json:"simplified_contract"`
		Cons               json.RawMessage `json:"cons"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return fallback
	}
	if strings.TrimSpace(reply.SimplifiedContract) == "" {
		return fallback
	}

	cons := []string{}
	if len(reply.Cons) > 0 {
		var items []string
		if err := json.Unmarshal(reply.Cons, &items); err == nil {
			for _, item := range items {
				if trimmed := strings.TrimSpace(bulletPrefix.ReplaceAllString(item, "")); trimmed != "" {
					cons = append(cons, trimmed)
				}
			}
		}
	}

	return &models.ContractAnalysis{
		SimplifiedContract: reply.SimplifiedContract,
		Cons:               cons,
	}
}

// stripCodeFence removes a surrounding markdown code block if present.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}

	body := content
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		return content
	}

	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}

	return strings.TrimSpace(body)
}
