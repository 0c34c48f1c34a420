// Package featureservice is a client for the query and edit endpoints of a
// hosted feature layer. It merges caller parameters with configured
// defaults, dispatches one HTTP exchange per operation, and normalizes the
// service's divergent response shapes into a single error contract.
package featureservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terrabridge/feature-bridge/pkg/convert"
	"github.com/terrabridge/feature-bridge/pkg/geo"
	"github.com/terrabridge/feature-bridge/pkg/httpclient"
)

const defaultTimeout = 30 * time.Second

// Params is a per-call query parameter map. Values are the scalar strings
// sent on the wire.
type Params map[string]string

// Config carries the immutable per-layer settings held by a Client. It is
// never mutated after construction; merging caller overrides produces a new
// effective parameter set per call.
type Config struct {
	// URL is the layer endpoint, e.g. .../FeatureServer/0.
	URL string
	// IDField names the attribute holding each feature's numeric identifier.
	IDField string
	// Token is injected into every request, overriding any caller value.
	Token string
	// DefaultResultOptions overrides individual built-in query defaults.
	DefaultResultOptions Params
}

// builtinResultOptions are the query defaults applied when the caller
// configures nothing else.
func builtinResultOptions() Params {
	return Params{
		"returnGeometry":   "true",
		"outSR":            "4326",
		"outFields":        "*",
		"f":                "json",
		"returnCountsOnly": "false",
		"returnIdsOnly":    "false",
	}
}

// Client talks to a single feature layer. Safe for concurrent use; every
// operation is an independent one-shot exchange.
type Client struct {
	cfg      Config
	defaults Params
	http     Transport
	conv     Converter
	log      Logger
}

// NewClient builds a client around cfg. The caller's DefaultResultOptions
// are merged over the built-in defaults key by key. Nil collaborators fall
// back to the resty transport, the bundled codec, and a no-op logger. The
// configuration is not validated here; a malformed URL surfaces when an
// operation is invoked.
func NewClient(cfg Config, transport Transport, conv Converter, log Logger) *Client {
	if transport == nil {
		transport = httpclient.NewFormTransport(defaultTimeout)
	}
	if conv == nil {
		conv = convert.Codec{}
	}

	defaults := builtinResultOptions()
	for k, v := range cfg.DefaultResultOptions {
		defaults[k] = v
	}

	return &Client{
		cfg:      cfg,
		defaults: defaults,
		http:     transport,
		conv:     conv,
		log:      ensureLogger(log),
	}
}

// effectiveParams merges caller params over the configured defaults. The
// token key is always overwritten from config, even when the configured
// token is empty; a caller-supplied token never survives.
func (c *Client) effectiveParams(params Params) Params {
	eff := make(Params, len(c.defaults)+len(params)+1)
	for k, v := range c.defaults {
		eff[k] = v
	}
	for k, v := range params {
		eff[k] = v
	}
	eff["token"] = c.cfg.Token
	return eff
}

// Query runs the layer's query endpoint and returns the matching features
// as a GeoJSON collection, in service order.
func (c *Client) Query(ctx context.Context, params Params) (*geo.FeatureCollection, error) {
	eff := c.effectiveParams(params)
	c.log.DebugObj("feature query issued", "query_params", eff)

	body, err := c.http.GetJSON(ctx, c.cfg.URL+"/query", eff)
	if err != nil {
		return nil, err
	}
	c.log.DebugObj("feature query response", "query_body", body)

	if errObj, ok := body["error"].(map[string]any); ok {
		return nil, serviceErrorFrom(errObj, "message")
	}

	rawFeatures, ok := body["features"].([]any)
	if !ok {
		return nil, ErrFeaturesUndefined
	}

	features := make([]geo.Feature, 0, len(rawFeatures))
	for i, raw := range rawFeatures {
		sf := serviceFeatureFrom(raw)
		f, err := c.conv.ToGeoJSON(sf)
		if err != nil {
			return nil, fmt.Errorf("convert feature %d: %w", i, err)
		}
		features = append(features, f)
	}
	return geo.NewFeatureCollection(features), nil
}

// Add creates a single feature on the layer.
func (c *Client) Add(ctx context.Context, feature geo.Feature) error {
	sf, err := c.conv.ToService(feature)
	if err != nil {
		return fmt.Errorf("convert feature: %w", err)
	}
	form, err := c.editForm(sf)
	if err != nil {
		return err
	}
	return c.postEdit(ctx, "addFeatures", form)
}

// Update rewrites a single feature. The identifier attribute is coerced to
// a numeric value first; the service requires numeric identifiers for
// updates. An unparsable identifier is sent as null rather than rejected
// locally, so the service reports the failure.
func (c *Client) Update(ctx context.Context, feature geo.Feature) error {
	sf, err := c.conv.ToService(feature)
	if err != nil {
		return fmt.Errorf("convert feature: %w", err)
	}
	if sf.Attributes == nil {
		sf.Attributes = map[string]any{}
	}
	if n, ok := toNumber(sf.Attributes[c.cfg.IDField]); ok {
		sf.Attributes[c.cfg.IDField] = n
	} else {
		sf.Attributes[c.cfg.IDField] = nil
	}

	form, err := c.editForm(sf)
	if err != nil {
		return err
	}
	return c.postEdit(ctx, "updateFeatures", form)
}

// Delete removes features by identifier. The ids value is passed through
// uninterpreted; it may be a single id or a comma-delimited list.
func (c *Client) Delete(ctx context.Context, ids string) error {
	form := url.Values{
		"objectIds":         {ids},
		"f":                 {"json"},
		"rollbackOnFailure": {"true"},
		"token":             {c.cfg.Token},
	}
	return c.postEdit(ctx, "deleteFeatures", form)
}

// editForm builds the form body shared by add and update: a batch of
// exactly one feature.
func (c *Client) editForm(sf geo.ServiceFeature) (url.Values, error) {
	payload, err := json.Marshal([]geo.ServiceFeature{sf})
	if err != nil {
		return nil, fmt.Errorf("encode feature batch: %w", err)
	}
	return url.Values{
		"f":        {"json"},
		"features": {string(payload)},
		"token":    {c.cfg.Token},
	}, nil
}

// postEdit posts the form to the given edit endpoint and normalizes the
// response.
func (c *Client) postEdit(ctx context.Context, endpoint string, form url.Values) error {
	c.log.DebugObj("feature edit issued", "edit_request", map[string]any{
		"endpoint": endpoint,
	})

	raw, err := c.http.PostForm(ctx, c.cfg.URL+"/"+endpoint, form)
	if err != nil {
		return err
	}
	c.log.DebugObj("feature edit response", "edit_body", raw)

	return normalizeEditResponse(raw)
}

// serviceFeatureFrom pulls the attributes/geometry pair out of a decoded
// query feature. Malformed entries degrade to empty features rather than
// failing the whole page.
func serviceFeatureFrom(raw any) geo.ServiceFeature {
	m, ok := raw.(map[string]any)
	if !ok {
		return geo.ServiceFeature{}
	}
	sf := geo.ServiceFeature{Geometry: m["geometry"]}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		sf.Attributes = attrs
	}
	return sf
}

// serviceErrorFrom builds a ServiceError from a decoded error object. The
// message lives under msgKey ("message" on query bodies, "description" on
// per-result errors).
func serviceErrorFrom(errObj map[string]any, msgKey string) *ServiceError {
	se := &ServiceError{}
	if msg, ok := errObj[msgKey].(string); ok {
		se.Message = msg
	}
	if code, ok := toNumber(errObj["code"]); ok {
		se.Code = int(code)
	}
	if details, ok := errObj["details"].([]any); ok {
		se.Details = details
	}
	return se
}

// toNumber coerces decoded JSON scalars and numeric strings to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
