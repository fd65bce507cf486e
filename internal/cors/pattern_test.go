package cors

import (
	"testing"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		origin  string
		want    bool
	}{
		{"exact literal", "https://app.example.com", "https://app.example.com", true},
		{"literal mismatch", "https://app.example.com", "https://other.example.com", false},

		{"port wildcard matches any port", "http://localhost:*", "http://localhost:4041", true},
		{"port wildcard matches another port", "http://localhost:*", "http://localhost:3000", true},
		{"port wildcard scheme mismatch", "http://localhost:*", "https://localhost:4041", false},
		{"port wildcard matches portless origin", "http://localhost:*", "http://localhost", true},
		{"port wildcard host mismatch", "http://localhost:*", "http://localhost.evil.com:4041", false},
		{"port wildcard different host", "http://localhost:*", "http://127.0.0.1:4041", false},

		{"subdomain wildcard one label", "https://*.example.com", "https://app.example.com", true},
		{"subdomain wildcard nested labels", "https://*.example.com", "https://a.b.example.com", true},
		{"subdomain wildcard bare domain", "https://*.example.com", "https://example.com", false},
		{"subdomain wildcard scheme mismatch", "https://*.example.com", "http://app.example.com", false},
		{"subdomain wildcard suffix attack", "https://*.example.com", "https://evilexample.com", false},
		{"subdomain wildcard with port", "https://*.example.com", "https://app.example.com:8443", true},

		{"allow-all matches any origin", "*", "https://app.example.com", true},
		{"allow-all matches localhost", "*", "http://localhost:3000", true},
		{"allow-all empty origin still fails", "*", "", false},

		{"empty pattern", "", "https://app.example.com", false},
		{"empty origin", "https://app.example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.pattern, tt.origin); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.pattern, tt.origin, got, tt.want)
			}
		})
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"https://app.example.com", "http://localhost:*"}

	if !MatchesAny(patterns, "http://localhost:4041") {
		t.Error("MatchesAny() should match the port wildcard entry")
	}
	if MatchesAny(patterns, "https://other.example.com") {
		t.Error("MatchesAny() should not match an unlisted origin")
	}

	// Empty list fails closed
	if MatchesAny(nil, "https://app.example.com") {
		t.Error("MatchesAny(nil, ...) must match nothing")
	}
	if MatchesAny([]string{}, "https://app.example.com") {
		t.Error("MatchesAny with empty list must match nothing")
	}
}

func TestExpandHeaders(t *testing.T) {
	t.Run("explicit list passes through", func(t *testing.T) {
		in := []string{"Authorization", "Content-Type"}
		out := ExpandHeaders(in)
		if len(out) != 2 || out[0] != "Authorization" {
			t.Errorf("ExpandHeaders(%v) = %v", in, out)
		}
	})

	t.Run("wildcard expands to fixed superset", func(t *testing.T) {
		out := ExpandHeaders([]string{"*"})
		if len(out) != len(wildcardHeaderSet) {
			t.Fatalf("len = %d, want %d", len(out), len(wildcardHeaderSet))
		}
		found := false
		for _, h := range out {
			if h == "*" {
				t.Error("wildcard must not survive expansion")
			}
			if h == "Authorization" {
				found = true
			}
		}
		if !found {
			t.Error("expanded set should include Authorization")
		}
	})

	t.Run("wildcard unions with explicit extras", func(t *testing.T) {
		out := ExpandHeaders([]string{"*", "X-Custom-Header"})
		hasCustom := false
		for _, h := range out {
			if h == "X-Custom-Header" {
				hasCustom = true
			}
		}
		if !hasCustom {
			t.Error("explicit extras should be unioned into the expansion")
		}
	})

	t.Run("duplicates removed", func(t *testing.T) {
		out := ExpandHeaders([]string{"*", "Authorization"})
		count := 0
		for _, h := range out {
			if h == "Authorization" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("Authorization appears %d times, want 1", count)
		}
	})
}
