package extract

import (
	"testing"

	"serpwatch/models"
)

func TestRegistrableDomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"www.example.com/plumbing", "example.com"},
		{"https://shop.example.co.uk/items?id=3", "example.co.uk"},
		{"example.com", "example.com"},
		{"  www.example.com  ", "example.com"},
		{"WWW.EXAMPLE.COM", "example.com"},
		{"", ""},
		{"not a url at all", ""},
		{"localhost", ""},
	}

	for _, c := range cases {
		if got := RegistrableDomain(c.raw); got != c.want {
			t.Fatalf("RegistrableDomain(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestAdvertiserDomain(t *testing.T) {
	// display URL wins when parseable
	if got := AdvertiserDomain("www.display.com/path", "https://www.dest.com/x"); got != "display.com" {
		t.Fatalf("expected display.com, got %q", got)
	}

	// falls back to destination URL
	if got := AdvertiserDomain("", "https://www.dest.com/x"); got != "dest.com" {
		t.Fatalf("expected dest.com, got %q", got)
	}

	// explicit unknown, never empty
	if got := AdvertiserDomain("", ""); got != models.AdvertiserUnknown {
		t.Fatalf("expected %q, got %q", models.AdvertiserUnknown, got)
	}
	if got := AdvertiserDomain("garbage", "also garbage"); got != models.AdvertiserUnknown {
		t.Fatalf("expected %q for unparseable inputs, got %q", models.AdvertiserUnknown, got)
	}
}
