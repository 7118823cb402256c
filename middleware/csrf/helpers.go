package csrf

import (
	"sync"

	"github.com/goliatone/go-router"
)

// TemplateHelperFactory lets template engines lazily evaluate CSRF helpers
// per request. When set, CSRFTemplateHelpers invokes the factory for each
// helper name and fallback value so callers can return closures instead of
// static strings.
type TemplateHelperFactory func(name string, fallback string) any

var (
	templateHelperFactory   TemplateHelperFactory
	templateHelperFactoryMu sync.RWMutex
)

// SetTemplateHelperFactory registers the factory used to create CSRF template
// helpers. Passing nil restores the default static placeholder strings.
func SetTemplateHelperFactory(factory TemplateHelperFactory) {
	templateHelperFactoryMu.Lock()
	defer templateHelperFactoryMu.Unlock()
	templateHelperFactory = factory
}

func getTemplateHelperFactory() TemplateHelperFactory {
	templateHelperFactoryMu.RLock()
	defer templateHelperFactoryMu.RUnlock()
	return templateHelperFactory
}

// CSRFTemplateHelpers returns static template helpers for rendering outside
// a request, where no token is available yet.
func CSRFTemplateHelpers() map[string]any {
	base := map[string]string{
		"csrf_token":       "",
		"csrf_field":       `<input type="hidden" name="` + DefaultFormFieldName + `" value="">`,
		"csrf_meta":        `<meta name="csrf-token" content="">`,
		"csrf_header_name": DefaultHeaderName,
	}

	result := make(map[string]any, len(base))
	if factory := getTemplateHelperFactory(); factory != nil {
		for key, value := range base {
			result[key] = factory(key, value)
		}
		return result
	}

	for key, value := range base {
		result[key] = value
	}

	return result
}

// CSRFTemplateHelpersWithRouter returns template helpers populated from the
// request context the middleware already filled in.
func CSRFTemplateHelpersWithRouter(ctx router.Context, tokenKey string) map[string]any {
	if tokenKey == "" {
		tokenKey = DefaultContextKey
	}

	token, _ := ctx.Locals(tokenKey).(string)

	fieldName := DefaultFormFieldName
	if val, ok := ctx.Locals(tokenKey + "_field").(string); ok && val != "" {
		fieldName = val
	}

	headerName := DefaultHeaderName
	if val, ok := ctx.Locals(tokenKey + "_header").(string); ok && val != "" {
		headerName = val
	}

	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": headerName,
	}
}
