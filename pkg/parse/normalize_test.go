package parse

import (
	"net/url"
	"testing"
)

func TestCanonicalURL_NilInput(t *testing.T) {
	if result := CanonicalURL(nil); result != "" {
		t.Errorf("CanonicalURL(nil) = %q, want empty string", result)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseSchemeAndHost", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"HTTPPort80Removed", "http://example.com:80/path", "http://example.com/path"},
		{"HTTPSPort443Removed", "https://example.com:443/path", "https://example.com/path"},
		{"NonDefaultPortKept", "http://example.com:8080/path", "http://example.com:8080/path"},
		{"EmptyPathBecomesRoot", "https://example.com", "https://example.com/"},
		{"TrailingSlashKept", "https://example.com/docs/", "https://example.com/docs/"},
		{"QueryKept", "https://example.com/search?q=go", "https://example.com/search?q=go"},
		{"FragmentDropped", "https://example.com/page#section", "https://example.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q) error = %v", tt.input, err)
			}
			if result := CanonicalURL(parsed); result != tt.expected {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCanonicalURL_DoesNotModifyInput(t *testing.T) {
	parsed, _ := url.Parse("HTTP://EXAMPLE.COM:80/path#frag")
	_ = CanonicalURL(parsed)
	if parsed.Host != "EXAMPLE.COM:80" || parsed.Fragment != "frag" {
		t.Errorf("CanonicalURL modified its input: %+v", parsed)
	}
}

func TestParseRootURL(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expected      string
		schemeAssumed bool
		wantErr       bool
	}{
		{"FullURL", "https://example.com", "https://example.com/", false, false},
		{"HTTPURL", "http://example.com/docs", "http://example.com/docs", false, false},
		{"MissingScheme", "example.com/docs", "https://example.com/docs", true, false},
		{"SurroundingSpace", "  https://example.com/a  ", "https://example.com/a", false, false},
		{"Empty", "", "", false, true},
		{"FTPScheme", "ftp://example.com/file", "", false, true},
		{"NoTLD", "https://localhost/", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, assumed, err := ParseRootURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseRootURL(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRootURL(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseRootURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if assumed != tt.schemeAssumed {
				t.Errorf("ParseRootURL(%q) schemeAssumed = %v, want %v", tt.input, assumed, tt.schemeAssumed)
			}
		})
	}
}

func TestDuplicateKey_EquivalentVariants(t *testing.T) {
	variants := []string{
		"https://example.com/docs",
		"http://example.com/docs",
		"https://example.com/docs/",
		"https://example.com/docs#",
		"http://example.com/docs/#",
	}

	want := "example.com/docs"
	for _, v := range variants {
		if got := DuplicateKey(v); got != want {
			t.Errorf("DuplicateKey(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestDuplicateKey_DistinctPages(t *testing.T) {
	if DuplicateKey("https://example.com/a") == DuplicateKey("https://example.com/b") {
		t.Error("DuplicateKey() collapsed distinct paths")
	}
	if DuplicateKey("https://example.com/a?x=1") == DuplicateKey("https://example.com/a") {
		t.Error("DuplicateKey() collapsed distinct queries")
	}
}
