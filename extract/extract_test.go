package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"serpwatch/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		payload string
		want    models.PayloadKind
	}{
		{`{"ads": []}`, models.PayloadJSON},
		{"  \n\t[{}]", models.PayloadJSON},
		{"<!DOCTYPE html><html></html>", models.PayloadHTML},
		{"plain text", models.PayloadHTML},
		{"", models.PayloadHTML},
	}

	for _, c := range cases {
		if got := DetectKind([]byte(c.payload)); got != c.want {
			t.Fatalf("DetectKind(%q) = %s, want %s", c.payload, got, c.want)
		}
	}
}

func TestFromPayload_GoogleHTML(t *testing.T) {
	data := FromPayload(loadFixture(t, "google_serp.html"), "google")

	if len(data.TopAds) != 2 {
		t.Fatalf("expected 2 top ads, got %d", len(data.TopAds))
	}
	if len(data.BottomAds) != 1 {
		t.Fatalf("expected 1 bottom ad, got %d", len(data.BottomAds))
	}
	if len(data.OrganicResults) != 2 {
		t.Fatalf("expected 2 organic results, got %d", len(data.OrganicResults))
	}
	if len(data.LocalPack) != 1 {
		t.Fatalf("expected 1 local result, got %d", len(data.LocalPack))
	}

	first := data.TopAds[0]
	if first.Title != "24/7 Emergency Plumbing - Quick Fix Plumbing" {
		t.Fatalf("unexpected first ad title %q", first.Title)
	}
	if first.DestinationURL != "https://www.quickfixplumbing.com/emergency" {
		t.Fatalf("unexpected destination URL %q", first.DestinationURL)
	}
	if first.DisplayURL != "www.quickfixplumbing.com/emergency" {
		t.Fatalf("unexpected display URL %q", first.DisplayURL)
	}
	if first.AdvertiserDomain != "quickfixplumbing.com" {
		t.Fatalf("unexpected advertiser domain %q", first.AdvertiserDomain)
	}
	if len(first.Sitelinks) != 2 {
		t.Fatalf("expected 2 sitelinks, got %d", len(first.Sitelinks))
	}
	if first.Position != 1 || first.PositionOverall != 1 {
		t.Fatalf("unexpected first ad positions %d/%d", first.Position, first.PositionOverall)
	}

	second := data.TopAds[1]
	if second.Position != 2 || second.PositionOverall != 2 {
		t.Fatalf("unexpected second ad positions %d/%d", second.Position, second.PositionOverall)
	}

	bottom := data.BottomAds[0]
	if bottom.Title != "Budget Plumbing Offers" {
		t.Fatalf("unexpected bottom ad title %q", bottom.Title)
	}
	if bottom.Position != 1 {
		t.Fatalf("bottom position restarts at 1, got %d", bottom.Position)
	}
	if bottom.PositionOverall != 3 {
		t.Fatalf("expected overall position 3, got %d", bottom.PositionOverall)
	}
	if bottom.AdvertiserDomain != "budgetplumbing.co.uk" {
		t.Fatalf("unexpected bottom advertiser domain %q", bottom.AdvertiserDomain)
	}

	if data.AdMetrics.TotalAds != 3 {
		t.Fatalf("expected 3 total ads, got %d", data.AdMetrics.TotalAds)
	}
	if !data.AdMetrics.HasAds {
		t.Fatalf("expected hasAds")
	}
	wantPositions := []int{1, 2, 3}
	if !reflect.DeepEqual(data.AdMetrics.AdPositions, wantPositions) {
		t.Fatalf("unexpected ad positions %v", data.AdMetrics.AdPositions)
	}
	wantDomains := []string{"quickfixplumbing.com", "pipemasters.net", "budgetplumbing.co.uk"}
	if !reflect.DeepEqual(data.AdMetrics.AdDomains, wantDomains) {
		t.Fatalf("unexpected ad domains %v", data.AdMetrics.AdDomains)
	}

	if data.LocalPack[0].Name != "Smith & Sons Plumbing" {
		t.Fatalf("unexpected local name %q", data.LocalPack[0].Name)
	}
}

func TestFromPayload_BareAdMarkers(t *testing.T) {
	// no region containers at all, only the bare data-text-ad markers
	data := FromPayload(loadFixture(t, "google_serp_bare.html"), "google")

	if len(data.TopAds) != 2 {
		t.Fatalf("expected 2 top ads, got %d", len(data.TopAds))
	}
	if len(data.BottomAds) != 0 {
		t.Fatalf("expected no bottom ads, got %d", len(data.BottomAds))
	}
	if len(data.OrganicResults) != 1 {
		t.Fatalf("expected 1 organic result, got %d", len(data.OrganicResults))
	}
	if data.AdMetrics.TotalAds != 2 || !data.AdMetrics.HasAds {
		t.Fatalf("unexpected metrics: %+v", data.AdMetrics)
	}
	if data.TopAds[0].Title != "Ad One Heading" || data.TopAds[1].Title != "Ad Two Heading" {
		t.Fatalf("unexpected ad titles %q, %q", data.TopAds[0].Title, data.TopAds[1].Title)
	}
}

func TestFromPayload_NoAds(t *testing.T) {
	data := FromPayload(loadFixture(t, "google_serp_noads.html"), "google")

	if data.AdMetrics.HasAds {
		t.Fatalf("expected hasAds false")
	}
	if data.AdMetrics.TotalAds != 0 {
		t.Fatalf("expected 0 total ads, got %d", data.AdMetrics.TotalAds)
	}
	if data.TopAds == nil || data.BottomAds == nil || data.ShoppingAds == nil {
		t.Fatalf("ad slices must be present even when empty")
	}
	if data.AdMetrics.AdPositions == nil || data.AdMetrics.AdDomains == nil {
		t.Fatalf("metric slices must be present even when empty")
	}
	if len(data.OrganicResults) != 1 {
		t.Fatalf("expected 1 organic result, got %d", len(data.OrganicResults))
	}
}

func TestFromPayload_ParsedJSON(t *testing.T) {
	data := FromPayload(loadFixture(t, "parsed_result.json"), "google")

	// the duplicate top ad differs only in casing and whitespace
	if len(data.TopAds) != 1 {
		t.Fatalf("expected duplicate title collapsed to 1 top ad, got %d", len(data.TopAds))
	}
	if len(data.BottomAds) != 1 {
		t.Fatalf("expected 1 bottom ad, got %d", len(data.BottomAds))
	}
	if len(data.ShoppingAds) != 1 {
		t.Fatalf("expected 1 shopping ad, got %d", len(data.ShoppingAds))
	}
	if data.AdMetrics.TotalAds != 3 {
		t.Fatalf("expected 3 total ads, got %d", data.AdMetrics.TotalAds)
	}

	top := data.TopAds[0]
	if top.AdvertiserDomain != "quickfixplumbing.com" {
		t.Fatalf("unexpected advertiser domain %q", top.AdvertiserDomain)
	}
	if len(top.Sitelinks) != 1 || top.Sitelinks[0].Title != "Drain Cleaning" {
		t.Fatalf("unexpected sitelinks %+v", top.Sitelinks)
	}
	if len(top.Extensions) != 2 {
		t.Fatalf("expected 2 extensions, got %d", len(top.Extensions))
	}

	if data.ShoppingAds[0].AdvertiserDomain != "toolbarn.com" {
		t.Fatalf("unexpected shopping advertiser %q", data.ShoppingAds[0].AdvertiserDomain)
	}
	// shopping ads never enter the overall position sequence
	wantPositions := []int{1, 2}
	if !reflect.DeepEqual(data.AdMetrics.AdPositions, wantPositions) {
		t.Fatalf("unexpected ad positions %v", data.AdMetrics.AdPositions)
	}

	if len(data.OrganicResults) != 2 || len(data.LocalPack) != 1 {
		t.Fatalf("unexpected organic/local counts %d/%d", len(data.OrganicResults), len(data.LocalPack))
	}
}

func TestFromPayload_BingHTML(t *testing.T) {
	data := FromPayload(loadFixture(t, "bing_serp.html"), "bing")

	if len(data.TopAds) != 1 {
		t.Fatalf("expected 1 top ad, got %d", len(data.TopAds))
	}
	if data.TopAds[0].Title != "Fast Movers - Free Quote Today" {
		t.Fatalf("unexpected top ad title %q", data.TopAds[0].Title)
	}
	if data.TopAds[0].AdvertiserDomain != "fastmovers.com" {
		t.Fatalf("unexpected advertiser domain %q", data.TopAds[0].AdvertiserDomain)
	}
	if len(data.BottomAds) != 1 {
		t.Fatalf("expected 1 bottom ad, got %d", len(data.BottomAds))
	}
	if data.BottomAds[0].AdvertiserDomain != "cheapboxes.de" {
		t.Fatalf("unexpected bottom advertiser %q", data.BottomAds[0].AdvertiserDomain)
	}
	if len(data.OrganicResults) != 1 {
		t.Fatalf("expected 1 organic result, got %d", len(data.OrganicResults))
	}
}

func TestFromPayload_MalformedInput(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte("not html at all"),
		[]byte(`{"ads": [truncated`),
		[]byte("<div><span>unclosed"),
		{0x00, 0xff, 0xfe, 0x12},
	}

	for i, payload := range payloads {
		data := FromPayload(payload, "google")
		if data == nil {
			t.Fatalf("payload %d: expected a structure, got nil", i)
		}
		if data.AdMetrics.HasAds || data.AdMetrics.TotalAds != 0 {
			t.Fatalf("payload %d: expected empty metrics, got %+v", i, data.AdMetrics)
		}
		if data.TopAds == nil || data.OrganicResults == nil {
			t.Fatalf("payload %d: slices must be non-nil", i)
		}
	}
}

func TestFromPayload_Deterministic(t *testing.T) {
	payload := loadFixture(t, "google_serp.html")

	first := FromPayload(payload, "google")
	second := FromPayload(payload, "google")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction of the same payload produced different structures")
	}
}
