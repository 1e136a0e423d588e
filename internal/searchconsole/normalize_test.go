package searchconsole

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeSiteURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/", "sc-domain:example.com"},
		{"http://example.com", "sc-domain:example.com"},
		{"https://www.example.com/blog/", "sc-domain:www.example.com"},
		{"https://example.com:8443/", "sc-domain:example.com"},
		{"HTTPS://Example.COM/", "sc-domain:example.com"},
		{"example.com", "https://example.com"},
		{"www.example.com/", "https://www.example.com/"},
		{"sc-domain:example.com", "https://sc-domain:example.com"},
		{"ftp://example.com/", "https://ftp://example.com/"},
		{"", "https://"},
	}
	for _, tt := range tests {
		if got := NormalizeSiteURL(tt.in); got != tt.want {
			t.Errorf("NormalizeSiteURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSiteURL_DomainPropertyIsPrefixed(t *testing.T) {
	got := NormalizeSiteURL(NormalizeSiteURL("https://example.com/"))
	if got != "https://sc-domain:example.com" {
		t.Errorf("NormalizeSiteURL(sc-domain form) = %q, want https://sc-domain:example.com", got)
	}
}

func TestIsDomainProperty(t *testing.T) {
	if !IsDomainProperty("sc-domain:example.com") {
		t.Error("sc-domain:example.com should be a domain property")
	}
	if IsDomainProperty("https://example.com/") {
		t.Error("https://example.com/ should not be a domain property")
	}
}

func TestIsPermissionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("User does not have sufficient permission for site"), true},
		{errors.New("PERMISSION_DENIED"), true},
		{fmt.Errorf("query: %w", errors.New("Permission denied")), true},
		{errors.New("googleapi: Error 404: Not found"), false},
		{errors.New("quota exceeded"), false},
	}
	for _, tt := range tests {
		if got := IsPermissionError(tt.err); got != tt.want {
			t.Errorf("IsPermissionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
