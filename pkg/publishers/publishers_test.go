package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "http2" {
		t.Fatalf("expected only http2 enabled, got %#v", enabled)
	}
}

func TestLoadRegistryAllSinkTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: q1
    type: sqs
    sqs:
      uri: https://sqs.eu-west-1.amazonaws.com/1/queue
      region: eu-west-1
  - id: t1
    type: sns
    sns:
      topic_arn: arn:aws:sns:eu-west-1:1:topic
      region: eu-west-1
  - id: g1
    type: gcppubsub
    gcppubsub:
      project_id: proj
      topic_id: feature-changes
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 3 {
		t.Fatalf("expected 3 publishers, got %d", len(reg.All()))
	}
	if cfg, ok := reg.ByID("t1"); !ok || cfg.SNS.TopicARN != "arn:aws:sns:eu-west-1:1:topic" {
		t.Fatalf("sns config = %#v", cfg)
	}
}

func TestValidatePublisherConfigRejectsMissingHTTP(t *testing.T) {
	err := validatePublisherConfig(PublisherConfig{
		ID:   "h1",
		Type: TypeHTTP,
	})
	if err == nil {
		t.Fatalf("expected validation error for missing http block")
	}
}

func TestValidatePublisherConfigRejectsMissingSNSTopic(t *testing.T) {
	err := validatePublisherConfig(PublisherConfig{
		ID:   "s1",
		Type: TypeSNS,
		SNS:  &SNSPublisherConfig{Region: "eu-west-1"},
	})
	if err == nil {
		t.Fatalf("expected validation error for missing sns topic arn")
	}
}
