package strategy

import (
	"context"
	"testing"

	"github.com/strataflow/extractengine/pkg/apierr"
)

func TestURLMappingStrategy_DomainMatchIncludesSubdomains(t *testing.T) {
	target := &stubStrategy{name: "Target", record: Record{"matched": true}}
	s, err := NewURLMappingStrategy("Router", []URLRule{
		{Domain: "example.com", Strategy: target, Priority: 1},
	}, nil)
	if err != nil {
		t.Fatalf("NewURLMappingStrategy: %v", err)
	}

	out, err := s.Extract(context.Background(), "https://blog.example.com/post/1", "content", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out["matched"] != true {
		t.Fatalf("expected subdomain match to route to target, got %+v", out)
	}
}

func TestURLMappingStrategy_PatternOverridesDomain(t *testing.T) {
	domainMatch := &stubStrategy{name: "Domain", record: Record{"via": "domain"}}
	patternMatch := &stubStrategy{name: "Pattern", record: Record{"via": "pattern"}}

	s, err := NewURLMappingStrategy("Router", []URLRule{
		{Domain: "example.com", Strategy: domainMatch, Priority: 1},
		{Pattern: `/special/\d+`, Strategy: patternMatch, Priority: 5},
	}, nil)
	if err != nil {
		t.Fatalf("NewURLMappingStrategy: %v", err)
	}

	out, err := s.Extract(context.Background(), "https://example.com/special/42", "content", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out["via"] != "pattern" {
		t.Fatalf("expected the higher-priority pattern rule to win, got %+v", out)
	}
}

func TestURLMappingStrategy_FallsBackWhenNoRuleMatches(t *testing.T) {
	fallback := &stubStrategy{name: "Fallback", record: Record{"via": "fallback"}}
	s, err := NewURLMappingStrategy("Router", []URLRule{
		{Domain: "example.com", Strategy: &stubStrategy{name: "Other"}, Priority: 1},
	}, fallback)
	if err != nil {
		t.Fatalf("NewURLMappingStrategy: %v", err)
	}

	out, err := s.Extract(context.Background(), "https://somewhere-else.test", "content", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out["via"] != "fallback" {
		t.Fatalf("expected the fallback strategy, got %+v", out)
	}
}

func TestURLMappingStrategy_NoMatchNoFallbackIsNotFound(t *testing.T) {
	s, err := NewURLMappingStrategy("Router", []URLRule{
		{Domain: "example.com", Strategy: &stubStrategy{name: "Other"}, Priority: 1},
	}, nil)
	if err != nil {
		t.Fatalf("NewURLMappingStrategy: %v", err)
	}

	_, err = s.Extract(context.Background(), "https://somewhere-else.test", "content", Options{})
	if !apierr.Is(err, apierr.NotFound) {
		t.Fatalf("expected NotFound with no matching rule and no fallback, got %v", err)
	}
}

func TestURLMappingStrategy_InvalidPatternIsRejected(t *testing.T) {
	_, err := NewURLMappingStrategy("Router", []URLRule{
		{Pattern: "(unclosed", Strategy: &stubStrategy{name: "Bad"}, Priority: 1},
	}, nil)
	if !apierr.Is(err, apierr.Configuration) {
		t.Fatalf("expected Configuration error for an invalid regex, got %v", err)
	}
}

func TestURLMappingStrategy_IPv6HostIsNotTruncatedAsPort(t *testing.T) {
	target := &stubStrategy{name: "Target", record: Record{"matched": true}}
	s, err := NewURLMappingStrategy("Router", []URLRule{
		{Domain: "[::1]", Strategy: target, Priority: 1},
	}, nil)
	if err != nil {
		t.Fatalf("NewURLMappingStrategy: %v", err)
	}
	out, err := s.Extract(context.Background(), "https://[::1]:8080/path", "content", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out["matched"] != true {
		t.Fatalf("expected IPv6 host domain rule to match, got %+v", out)
	}
}
