package extract

import (
	"bytes"
	"strings"

	"serpwatch/models"
)

// AdCandidate is one extracted advertisement before persistence
type AdCandidate struct {
	Position         int        `json:"position"`
	PositionOverall  int        `json:"positionOverall"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DisplayURL       string     `json:"displayUrl"`
	DestinationURL   string     `json:"destinationUrl"`
	AdvertiserDomain string     `json:"advertiserDomain"`
	Sitelinks        []Sitelink `json:"sitelinks,omitempty"`
	Extensions       []string   `json:"extensions,omitempty"`
}

type Sitelink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

type LocalResult struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Rating   string `json:"rating"`
	Address  string `json:"address"`
}

type AdMetrics struct {
	TotalAds    int      `json:"totalAds"`
	HasAds      bool     `json:"hasAds"`
	AdPositions []int    `json:"adPositions"`
	AdDomains   []string `json:"adDomains"`
}

// ExtractedAdsData is the canonical output shape regardless of whether the
// input was structured JSON or raw HTML. Every field is present (possibly
// empty) because downstream consumers assume the shape.
type ExtractedAdsData struct {
	TopAds         []AdCandidate   `json:"topAds"`
	BottomAds      []AdCandidate   `json:"bottomAds"`
	ShoppingAds    []AdCandidate   `json:"shoppingAds"`
	OrganicResults []OrganicResult `json:"organicResults"`
	LocalPack      []LocalResult   `json:"localPack"`
	AdMetrics      AdMetrics       `json:"adMetrics"`
}

func emptyResult() *ExtractedAdsData {
	return &ExtractedAdsData{
		TopAds:         []AdCandidate{},
		BottomAds:      []AdCandidate{},
		ShoppingAds:    []AdCandidate{},
		OrganicResults: []OrganicResult{},
		LocalPack:      []LocalResult{},
		AdMetrics: AdMetrics{
			AdPositions: []int{},
			AdDomains:   []string{},
		},
	}
}

// DetectKind classifies a payload as structured JSON or raw HTML.
func DetectKind(payload []byte) models.PayloadKind {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return models.PayloadJSON
	}
	return models.PayloadHTML
}

// FromPayload turns a raw results-page payload into the canonical extracted
// structure. Pure, no I/O. Malformed input yields a zero-result structure,
// never an error: a page with no recognizable ads is a valid outcome.
func FromPayload(payload []byte, platform string) *ExtractedAdsData {
	var data *ExtractedAdsData
	if DetectKind(payload) == models.PayloadJSON {
		data = fromJSON(payload)
	} else {
		data = fromHTML(payload, platform)
	}
	assemble(data)
	return data
}

// assemble assigns the single consistent position rule and computes metrics.
// Position is 1..n within each category; PositionOverall is 1..n across
// top then bottom ads in page order. Both input paths share this pass so
// JSON and HTML payloads can never number ads differently.
func assemble(data *ExtractedAdsData) {
	overall := 0
	for i := range data.TopAds {
		overall++
		data.TopAds[i].Position = i + 1
		data.TopAds[i].PositionOverall = overall
	}
	for i := range data.BottomAds {
		overall++
		data.BottomAds[i].Position = i + 1
		data.BottomAds[i].PositionOverall = overall
	}
	for i := range data.ShoppingAds {
		data.ShoppingAds[i].Position = i + 1
	}
	for i := range data.OrganicResults {
		data.OrganicResults[i].Position = i + 1
	}
	for i := range data.LocalPack {
		data.LocalPack[i].Position = i + 1
	}

	metrics := AdMetrics{
		TotalAds:    len(data.TopAds) + len(data.BottomAds) + len(data.ShoppingAds),
		AdPositions: []int{},
		AdDomains:   []string{},
	}
	metrics.HasAds = metrics.TotalAds > 0

	seen := make(map[string]bool)
	for _, ad := range append(append([]AdCandidate{}, data.TopAds...), data.BottomAds...) {
		metrics.AdPositions = append(metrics.AdPositions, ad.PositionOverall)
		if !seen[ad.AdvertiserDomain] {
			seen[ad.AdvertiserDomain] = true
			metrics.AdDomains = append(metrics.AdDomains, ad.AdvertiserDomain)
		}
	}
	data.AdMetrics = metrics
}

// normalizeTitle is the dedup key for ads surfaced by overlapping strategies
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// dedupAppend adds a candidate unless an accepted candidate already has the
// same normalized title.
func dedupAppend(ads []AdCandidate, seen map[string]bool, ad AdCandidate) []AdCandidate {
	key := normalizeTitle(ad.Title)
	if key == "" || seen[key] {
		return ads
	}
	seen[key] = true
	return append(ads, ad)
}
