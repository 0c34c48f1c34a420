package featureservice

import (
	"context"
	"net/url"

	"github.com/terrabridge/feature-bridge/pkg/geo"
)

// Transport abstracts the HTTP layer so callers can inject mocks or
// different stacks. Query responses arrive pre-parsed; form posts return the
// raw body string, which this package parses itself. The asymmetry matches
// the service wire contract and is deliberate.
type Transport interface {
	GetJSON(ctx context.Context, url string, query map[string]string) (map[string]any, error)
	PostForm(ctx context.Context, url string, form url.Values) (string, error)
}

// Converter translates features between the service encoding and GeoJSON.
type Converter interface {
	ToGeoJSON(sf geo.ServiceFeature) (geo.Feature, error)
	ToService(f geo.Feature) (geo.ServiceFeature, error)
}

// Logger is the diagnostic surface the client emits to. Logging never
// affects call outcomes.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
