package domain

import (
	"strings"
	"testing"
)

func TestValidSiteID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"simple label", "shop", true},
		{"full domain", "shop.example.com", true},
		{"hyphenated", "my-shop.example.com", true},
		{"digits", "shop2.example.com", true},
		{"empty", "", false},
		{"path traversal", "../../etc", false},
		{"embedded traversal", "shop..example.com", false},
		{"absolute path", "/etc/passwd", false},
		{"null byte", "shop\x00.example.com", false},
		{"uppercase", "Shop.example.com", false},
		{"leading dot", ".example.com", false},
		{"trailing dot", "example.com.", false},
		{"leading hyphen", "-shop.example.com", false},
		{"trailing hyphen", "shop.example.com-", false},
		{"colon", "shop:80", false},
		{"space", "shop example", false},
		{"too long", strings.Repeat("a", 254), false},
		{"max length", strings.Repeat("a", 253), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSiteID(tt.id); got != tt.valid {
				t.Errorf("ValidSiteID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}
