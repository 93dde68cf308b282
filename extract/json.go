package extract

import (
	"encoding/json"
)

// parsedPayload mirrors the "parsed" result representation the scraping
// service returns once its own post-processing has finished.
type parsedPayload struct {
	Ads []struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		DisplayedURL  string `json:"displayed_url"`
		URL           string `json:"url"`
		BlockPosition string `json:"block_position"` // top, bottom
		Sitelinks     []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"sitelinks"`
		Extensions []string `json:"extensions"`
	} `json:"ads"`
	ShoppingResults []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Source string `json:"source"`
		Price  string `json:"price"`
	} `json:"shopping_results"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	LocalResults []struct {
		Title   string `json:"title"`
		Rating  string `json:"rating"`
		Address string `json:"address"`
	} `json:"local_results"`
}

// fromJSON maps an already-structured payload into the canonical shape.
func fromJSON(payload []byte) *ExtractedAdsData {
	data := emptyResult()

	var parsed parsedPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return data
	}

	topSeen := make(map[string]bool)
	bottomSeen := make(map[string]bool)
	for _, ad := range parsed.Ads {
		candidate := AdCandidate{
			Title:          ad.Title,
			Description:    ad.Description,
			DisplayURL:     ad.DisplayedURL,
			DestinationURL: ad.URL,
			Extensions:     ad.Extensions,
		}
		for _, sl := range ad.Sitelinks {
			candidate.Sitelinks = append(candidate.Sitelinks, Sitelink{Title: sl.Title, URL: sl.URL})
		}
		candidate.AdvertiserDomain = AdvertiserDomain(candidate.DisplayURL, candidate.DestinationURL)

		if ad.BlockPosition == "bottom" {
			data.BottomAds = dedupAppend(data.BottomAds, bottomSeen, candidate)
		} else {
			data.TopAds = dedupAppend(data.TopAds, topSeen, candidate)
		}
	}

	shoppingSeen := make(map[string]bool)
	for _, item := range parsed.ShoppingResults {
		candidate := AdCandidate{
			Title:          item.Title,
			Description:    item.Price,
			DisplayURL:     item.Source,
			DestinationURL: item.Link,
		}
		candidate.AdvertiserDomain = AdvertiserDomain(item.Source, item.Link)
		data.ShoppingAds = dedupAppend(data.ShoppingAds, shoppingSeen, candidate)
	}

	for _, item := range parsed.OrganicResults {
		data.OrganicResults = append(data.OrganicResults, OrganicResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	for _, item := range parsed.LocalResults {
		data.LocalPack = append(data.LocalPack, LocalResult{
			Name:    item.Title,
			Rating:  item.Rating,
			Address: item.Address,
		})
	}

	return data
}
