package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"serpwatch/extract"
	"serpwatch/models"
	"serpwatch/storage"
)

// SerpService persists fetch results and extraction output
type SerpService struct {
	store *storage.PostgresStore
}

func NewSerpService(store *storage.PostgresStore) *SerpService {
	return &SerpService{store: store}
}

// ExtractionResult summarizes one persisted extraction pass
type ExtractionResult struct {
	SerpID         uuid.UUID
	NewAds         int
	NewAdvertisers int
	Ads            []models.Ad
}

// StoreResult persists the raw/parsed payload as a SerpResult. Counts are
// zero until extraction fills them in.
func (s *SerpService) StoreResult(ctx context.Context, job *models.Job, kind models.PayloadKind, body []byte) (*models.SerpResult, error) {
	now := time.Now()
	serp := &models.SerpResult{
		ID:          uuid.New(),
		JobID:       job.ID,
		Query:       job.Query,
		Location:    job.Location,
		Platform:    job.Platform,
		PayloadKind: kind,
		RawContent:  body,
		FetchedAt:   now,
		CreatedAt:   now,
	}

	if err := s.store.CreateSerpResult(ctx, serp); err != nil {
		return nil, fmt.Errorf("create serp result: %w", err)
	}
	return serp, nil
}

// StoreExtraction persists Ad rows for every extracted category, upserts
// advertisers, and backfills the SerpResult's summary counts.
func (s *SerpService) StoreExtraction(ctx context.Context, serp *models.SerpResult, data *extract.ExtractedAdsData) (*ExtractionResult, error) {
	result := &ExtractionResult{SerpID: serp.ID}
	now := time.Now()

	categories := []struct {
		name string
		ads  []extract.AdCandidate
	}{
		{models.AdCategoryTop, data.TopAds},
		{models.AdCategoryBottom, data.BottomAds},
		{models.AdCategoryShopping, data.ShoppingAds},
	}

	for _, cat := range categories {
		for _, candidate := range cat.ads {
			ad := models.Ad{
				ID:               uuid.New(),
				SerpID:           serp.ID,
				Platform:         serp.Platform,
				Category:         cat.name,
				Position:         candidate.Position,
				PositionOverall:  candidate.PositionOverall,
				Title:            candidate.Title,
				Description:      candidate.Description,
				DisplayURL:       candidate.DisplayURL,
				DestinationURL:   candidate.DestinationURL,
				AdvertiserDomain: candidate.AdvertiserDomain,
				CreatedAt:        now,
			}
			if len(candidate.Sitelinks) > 0 {
				ad.Sitelinks, _ = json.Marshal(candidate.Sitelinks)
			}
			if len(candidate.Extensions) > 0 {
				ad.Extensions, _ = json.Marshal(candidate.Extensions)
			}

			if err := s.store.CreateAd(ctx, &ad); err != nil {
				return result, fmt.Errorf("create ad %q: %w", ad.Title, err)
			}
			result.Ads = append(result.Ads, ad)
			result.NewAds++

			if ad.AdvertiserDomain != models.AdvertiserUnknown {
				isNew, err := s.store.UpsertAdvertiser(ctx, ad.AdvertiserDomain, now)
				if err != nil {
					return result, fmt.Errorf("upsert advertiser %s: %w", ad.AdvertiserDomain, err)
				}
				if isNew {
					result.NewAdvertisers++
				}
			}
		}
	}

	if err := s.store.UpdateSerpCounts(ctx, serp.ID,
		data.AdMetrics.TotalAds, len(data.OrganicResults), len(data.LocalPack)); err != nil {
		return result, fmt.Errorf("update serp counts: %w", err)
	}
	serp.AdsCount = data.AdMetrics.TotalAds
	serp.OrganicCount = len(data.OrganicResults)
	serp.LocalCount = len(data.LocalPack)

	return result, nil
}

// EnqueueRenderings creates pending AdRendering rows for up to maxAds
// ads. The rendering worker captures them asynchronously; failures there
// stay on the individual rows.
func (s *SerpService) EnqueueRenderings(ctx context.Context, job *models.Job, ads []models.Ad, maxAds int) (int, error) {
	if !job.Options.CaptureHTML && !job.Options.CapturePNG {
		return 0, nil
	}

	serpURL := searchPageURL(job)
	enqueued := 0

	for i, ad := range ads {
		if i >= maxAds {
			break
		}

		var requests []models.AdRendering
		if job.Options.CapturePNG {
			requests = append(requests, models.AdRendering{
				AdID:   ad.ID,
				Target: models.RenderTargetSERP,
				Type:   models.RenderTypePNG,
				URL:    serpURL,
			})
		}
		if job.Options.CaptureHTML && ad.DestinationURL != "" {
			requests = append(requests, models.AdRendering{
				AdID:   ad.ID,
				Target: models.RenderTargetLandingPage,
				Type:   models.RenderTypeHTML,
				URL:    ad.DestinationURL,
			})
		}

		for _, r := range requests {
			r.ID = uuid.New()
			r.Status = models.RenderStatusPending
			r.CreatedAt = time.Now()
			if err := s.store.CreateAdRendering(ctx, &r); err != nil {
				return enqueued, fmt.Errorf("create rendering for ad %s: %w", r.AdID, err)
			}
			enqueued++
		}
	}

	return enqueued, nil
}

// searchPageURL reconstructs the results-page URL a SERP rendering targets
func searchPageURL(job *models.Job) string {
	q := url.Values{}
	q.Set("q", job.Query)
	switch job.Platform {
	case "bing":
		return "https://www.bing.com/search?" + q.Encode()
	default:
		if job.Location != "" {
			q.Set("near", job.Location)
		}
		return "https://www.google.com/search?" + q.Encode()
	}
}
