package parsers

import (
	"strings"
	"testing"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

func TestNormalizeDomainName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{" example.com. ", "example.com"},
		{"*.example.com", "example.com"},
		{".example.com", "example.com"},
		{"*.Example.COM.", "example.com"},
		{"", ""},
		{"   ", ""},
		{"*.", ""},
		{".", ""},
	}

	for _, tt := range tests {
		got := normalizeDomainName(tt.in)
		if got != tt.want {
			t.Errorf("normalizeDomainName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRuleKindFromRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.HostRuleKind
	}{
		{"example.com", domain.HostRuleExact},
		{"*.example.com", domain.HostRuleSuffix},
		{".example.com", domain.HostRuleSuffix},
		{"*example.com", domain.HostRuleExact},
	}
	for _, tt := range tests {
		if got := ruleKindFromRaw(tt.raw); got != tt.want {
			t.Errorf("ruleKindFromRaw(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsValidFQDN(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"example.com", true},
		{"a.b.c.example.com", true},
		{"1.example.com", true},
		{"localhost", false},
		{"", false},
		{"example..com", false},
		{"example.com/path", false},
		{"ads^", false},
		{"ex ample.com", false},
		{"-bad.example.com", false},
		{strings.Repeat("a", 64) + ".com", false},
		{strings.Repeat("a.", 128) + "com", false},
	}
	for _, tt := range tests {
		if got := isValidFQDN(tt.name); got != tt.want {
			t.Errorf("isValidFQDN(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyLineAndInlineComment(t *testing.T) {
	if e, c := classifyLine("   "); !e || c {
		t.Fatalf("blank line misclassified")
	}
	if e, c := classifyLine("  # note"); e || !c {
		t.Fatalf("comment line misclassified")
	}
	if e, c := classifyLine("example.com"); e || c {
		t.Fatalf("rule line misclassified")
	}
	if got := stripInlineComment("example.com # x"); got != "example.com " {
		t.Fatalf("stripInlineComment = %q", got)
	}
	if got := stripLineBOM("\uFEFFexample.com"); got != "example.com" {
		t.Fatalf("stripLineBOM = %q", got)
	}
}
