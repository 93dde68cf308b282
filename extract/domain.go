package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"serpwatch/models"
)

// AdvertiserDomain derives the registrable (eTLD+1) domain identifying an
// advertiser from the ad's display URL, falling back to the destination
// URL. When neither is parseable it returns the explicit unknown marker
// rather than an empty string.
func AdvertiserDomain(displayURL, destinationURL string) string {
	if d := RegistrableDomain(displayURL); d != "" {
		return d
	}
	if d := RegistrableDomain(destinationURL); d != "" {
		return d
	}
	return models.AdvertiserUnknown
}

// RegistrableDomain parses the eTLD+1 out of a URL or bare display string
// like "www.example.com/plumbing". Returns "" when nothing parseable.
func RegistrableDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// display URLs usually carry no scheme
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}
