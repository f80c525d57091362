package ai

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/openai/openai-go/v2"
	"google.golang.org/genai"

	"void-ai-chat/internal/domain"
)

// isQuota recognizes upstream rate-limit and quota signals from either SDK.
func isQuota(err error) bool {
	if err == nil {
		return false
	}
	var gv genai.APIError
	if errors.As(err, &gv) && (gv.Code == http.StatusTooManyRequests || gv.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil && (gp.Code == http.StatusTooManyRequests || gp.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	var oe *openai.Error
	if errors.As(err, &oe) && oe != nil && oe.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return hasStatus429(msg) ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

// hasStatus429 reports a standalone 429 token ("status 429", "429 Too Many
// Requests"); digits inside ids or counts do not match.
func hasStatus429(msg string) bool {
	for _, f := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	}) {
		if f == "429" {
			return true
		}
	}
	return false
}

// classify wraps a provider failure in the matching domain error kind.
// Errors that already carry a kind pass through.
func classify(op string, err error, streaming bool) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	switch {
	case isQuota(err):
		return domain.NewQuotaError(op, err)
	case streaming:
		return domain.NewStreamError(op, err)
	default:
		return domain.NewProviderError(op, err)
	}
}
