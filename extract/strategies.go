package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// adStrategy is one structural heuristic for locating ads of a category.
// Strategies are evaluated in order and each contributes candidates; the
// normalized-title dedup discards repeats surfaced by overlapping selectors.
type adStrategy struct {
	name     string
	selector string
	exclude  string // skip matches inside this ancestor
	parse    func(s *goquery.Selection) AdCandidate
}

type organicStrategy struct {
	name     string
	selector string
	parse    func(s *goquery.Selection) OrganicResult
}

type localStrategy struct {
	name     string
	selector string
	parse    func(s *goquery.Selection) LocalResult
}

type strategySet struct {
	topAds    []adStrategy
	bottomAds []adStrategy
	shopping  []adStrategy
	organic   []organicStrategy
	localPack []localStrategy
}

func strategiesFor(platform string) strategySet {
	switch platform {
	case "bing":
		return bingStrategies
	default:
		return googleStrategies
	}
}

var googleStrategies = strategySet{
	topAds: []adStrategy{
		{name: "top-container", selector: "#tads div[data-text-ad]", parse: parseGoogleTextAd},
		{name: "top-region", selector: "#taw div[data-text-ad]", parse: parseGoogleTextAd},
		{name: "aria-ads", selector: `div[aria-label="Ads"] div[data-text-ad]`, parse: parseGoogleTextAd},
		// bare marker, for stripped-down raw payloads with no region containers
		{name: "data-text-ad", selector: "div[data-text-ad]", exclude: "#bottomads,#tadsb", parse: parseGoogleTextAd},
	},
	bottomAds: []adStrategy{
		{name: "bottom-container", selector: "#bottomads div[data-text-ad]", parse: parseGoogleTextAd},
		{name: "bottom-block", selector: "#tadsb div[data-text-ad]", parse: parseGoogleTextAd},
	},
	shopping: []adStrategy{
		{name: "pla-unit", selector: ".pla-unit", parse: parseGoogleShoppingAd},
		{name: "commercial-unit", selector: ".commercial-unit-desktop-top .pla-unit-container", parse: parseGoogleShoppingAd},
	},
	organic: []organicStrategy{
		{name: "search-g", selector: "#search div.g", parse: parseGoogleOrganic},
		{name: "rso-g", selector: "#rso div.g", parse: parseGoogleOrganic},
		{name: "bare-g", selector: "div.g", parse: parseGoogleOrganic},
	},
	localPack: []localStrategy{
		{name: "local-details", selector: ".rllt__details", parse: parseGoogleLocal},
		{name: "local-card", selector: ".VkpGBb", parse: parseGoogleLocal},
	},
}

var bingStrategies = strategySet{
	topAds: []adStrategy{
		{name: "ad-top", selector: "#b_results .b_ad li.b_adLastChild, #b_results .b_ad li.b_adTop", parse: parseBingTextAd},
		{name: "ad-block", selector: ".b_ad > ul > li", exclude: ".b_adBottom", parse: parseBingTextAd},
	},
	bottomAds: []adStrategy{
		{name: "ad-bottom", selector: ".b_adBottom li", parse: parseBingTextAd},
	},
	shopping: []adStrategy{
		{name: "ans-carousel", selector: ".adsMvCarousel .pa_item", parse: parseBingShoppingAd},
	},
	organic: []organicStrategy{
		{name: "algo", selector: "#b_results > li.b_algo", parse: parseBingOrganic},
	},
	localPack: []localStrategy{
		{name: "local-list", selector: ".b_localList .b_vList > li", parse: parseBingLocal},
	},
}

func parseGoogleTextAd(s *goquery.Selection) AdCandidate {
	ad := AdCandidate{}

	heading := s.Find(`div[role="heading"]`).First()
	if heading.Length() == 0 {
		heading = s.Find("h3").First()
	}
	ad.Title = strings.TrimSpace(heading.Text())

	link := s.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return href != "" && href != "#"
	}).First()
	ad.DestinationURL, _ = link.Attr("href")

	ad.DisplayURL = strings.TrimSpace(s.Find("cite").First().Text())
	if ad.DisplayURL == "" {
		ad.DisplayURL = strings.TrimSpace(s.Find(".x2VHCd, .qzEoUe").First().Text())
	}

	ad.Description = strings.TrimSpace(s.Find(".MUxGbd, div.ad-description, div[data-snf]").First().Text())

	s.Find(`div[role="list"] a`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := strings.TrimSpace(a.Text())
		if title != "" {
			ad.Sitelinks = append(ad.Sitelinks, Sitelink{Title: title, URL: href})
		}
	})

	ad.AdvertiserDomain = AdvertiserDomain(ad.DisplayURL, ad.DestinationURL)
	return ad
}

func parseGoogleShoppingAd(s *goquery.Selection) AdCandidate {
	ad := AdCandidate{}
	ad.Title = strings.TrimSpace(s.Find(".pla-unit-title, h3").First().Text())
	ad.Description = strings.TrimSpace(s.Find(".pla-unit-price").First().Text())
	ad.DestinationURL, _ = s.Find("a").First().Attr("href")
	ad.DisplayURL = strings.TrimSpace(s.Find(".LbUacb, cite").First().Text())
	ad.AdvertiserDomain = AdvertiserDomain(ad.DisplayURL, ad.DestinationURL)
	return ad
}

func parseGoogleOrganic(s *goquery.Selection) OrganicResult {
	result := OrganicResult{}
	result.Title = strings.TrimSpace(s.Find("h3").First().Text())
	result.URL, _ = s.Find("a").First().Attr("href")
	result.Snippet = strings.TrimSpace(s.Find(".VwiC3b, .IsZvec, .result-snippet").First().Text())
	return result
}

func parseGoogleLocal(s *goquery.Selection) LocalResult {
	result := LocalResult{}
	result.Name = strings.TrimSpace(s.Find(".dbg0pd, .local-name").First().Text())
	result.Rating = strings.TrimSpace(s.Find(".Y0A0hc, .local-rating").First().Text())
	result.Address = strings.TrimSpace(s.Find(".rllt__details-address, .local-address").First().Text())
	return result
}

func parseBingTextAd(s *goquery.Selection) AdCandidate {
	ad := AdCandidate{}
	titleLink := s.Find("h2 a").First()
	ad.Title = strings.TrimSpace(titleLink.Text())
	ad.DestinationURL, _ = titleLink.Attr("href")
	ad.DisplayURL = strings.TrimSpace(s.Find(".b_adurl cite, cite").First().Text())
	ad.Description = strings.TrimSpace(s.Find(".b_caption p").First().Text())

	s.Find(".b_vlist2col a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := strings.TrimSpace(a.Text())
		if title != "" {
			ad.Sitelinks = append(ad.Sitelinks, Sitelink{Title: title, URL: href})
		}
	})

	ad.AdvertiserDomain = AdvertiserDomain(ad.DisplayURL, ad.DestinationURL)
	return ad
}

func parseBingShoppingAd(s *goquery.Selection) AdCandidate {
	ad := AdCandidate{}
	ad.Title = strings.TrimSpace(s.Find(".pa_title, h3").First().Text())
	ad.Description = strings.TrimSpace(s.Find(".pa_price").First().Text())
	ad.DestinationURL, _ = s.Find("a").First().Attr("href")
	ad.DisplayURL = strings.TrimSpace(s.Find(".pa_seller, cite").First().Text())
	ad.AdvertiserDomain = AdvertiserDomain(ad.DisplayURL, ad.DestinationURL)
	return ad
}

func parseBingOrganic(s *goquery.Selection) OrganicResult {
	result := OrganicResult{}
	titleLink := s.Find("h2 a").First()
	result.Title = strings.TrimSpace(titleLink.Text())
	result.URL, _ = titleLink.Attr("href")
	result.Snippet = strings.TrimSpace(s.Find(".b_caption p").First().Text())
	return result
}

func parseBingLocal(s *goquery.Selection) LocalResult {
	result := LocalResult{}
	result.Name = strings.TrimSpace(s.Find(".lc_content h2, .b_factrow b").First().Text())
	result.Rating = strings.TrimSpace(s.Find(".csrc_mid").First().Text())
	result.Address = strings.TrimSpace(s.Find(".b_address").First().Text())
	return result
}
