package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// fromHTML runs the platform's ordered strategy lists over a raw results
// page. Later strategies contribute candidates on top of earlier ones;
// the shared seen-set keeps overlapping selectors from duplicating ads.
func fromHTML(payload []byte, platform string) *ExtractedAdsData {
	data := emptyResult()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return data
	}

	set := strategiesFor(platform)

	topSeen := make(map[string]bool)
	for _, strat := range set.topAds {
		data.TopAds = runAdStrategy(doc, strat, data.TopAds, topSeen)
	}

	bottomSeen := make(map[string]bool)
	for _, strat := range set.bottomAds {
		data.BottomAds = runAdStrategy(doc, strat, data.BottomAds, bottomSeen)
	}

	shoppingSeen := make(map[string]bool)
	for _, strat := range set.shopping {
		data.ShoppingAds = runAdStrategy(doc, strat, data.ShoppingAds, shoppingSeen)
	}

	organicSeen := make(map[string]bool)
	for _, strat := range set.organic {
		doc.Find(strat.selector).Each(func(_ int, s *goquery.Selection) {
			// an organic block nested inside an ad container is an ad, not a result
			if s.Closest("[data-text-ad]").Length() > 0 {
				return
			}
			result := strat.parse(s)
			key := normalizeTitle(result.Title)
			if key == "" || organicSeen[key] {
				return
			}
			organicSeen[key] = true
			data.OrganicResults = append(data.OrganicResults, result)
		})
	}

	localSeen := make(map[string]bool)
	for _, strat := range set.localPack {
		doc.Find(strat.selector).Each(func(_ int, s *goquery.Selection) {
			result := strat.parse(s)
			key := normalizeTitle(result.Name)
			if key == "" || localSeen[key] {
				return
			}
			localSeen[key] = true
			data.LocalPack = append(data.LocalPack, result)
		})
	}

	return data
}

func runAdStrategy(doc *goquery.Document, strat adStrategy, ads []AdCandidate, seen map[string]bool) []AdCandidate {
	doc.Find(strat.selector).Each(func(_ int, s *goquery.Selection) {
		if strat.exclude != "" && s.Closest(strat.exclude).Length() > 0 {
			return
		}
		ads = dedupAppend(ads, seen, strat.parse(s))
	})
	return ads
}
