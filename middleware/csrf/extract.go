package csrf

import (
	"strings"

	"github.com/goliatone/go-router"
)

// TokenExtractor pulls a candidate token out of a request.
type TokenExtractor func(router.Context) (string, error)

// extractToken tries each configured source and returns the first hit.
func extractToken(ctx router.Context, cfg Config) (string, error) {
	for _, extractor := range getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName) {
		token, err := extractor(ctx)
		if token != "" && err == nil {
			return token, nil
		}
	}

	return "", nil
}

// getExtractors parses a lookup string like "form:_token,header:X-CSRF-Token"
// into extractors. An empty lookup falls back to form-then-header.
func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	if tokenLookup == "" {
		return []TokenExtractor{
			extractorFromForm(formField),
			extractorFromHeader(header),
		}
	}

	var extractors []TokenExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "form:"):
			extractors = append(extractors, extractorFromForm(strings.TrimPrefix(part, "form:")))
		case strings.HasPrefix(part, "header:"):
			extractors = append(extractors, extractorFromHeader(strings.TrimPrefix(part, "header:")))
		}
	}

	return extractors
}

func extractorFromForm(fieldName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.FormValue(fieldName), nil
	}
}

func extractorFromHeader(headerName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.GetString(headerName, ""), nil
	}
}
