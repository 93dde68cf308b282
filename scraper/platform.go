package scraper

import (
	"fmt"

	"serpwatch/models"
)

// PlatformAdapter shapes the submit request for one search engine.
type PlatformAdapter interface {
	ID() string
	BuildRequest(job *models.Job) map[string]interface{}
}

// GetPlatformAdapter returns the adapter for the given platform id.
func GetPlatformAdapter(platform string) (PlatformAdapter, error) {
	switch platform {
	case "google", "":
		return &GoogleAdapter{}, nil
	case "bing":
		return &BingAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
}

type GoogleAdapter struct{}

func (a *GoogleAdapter) ID() string { return "google" }

func (a *GoogleAdapter) BuildRequest(job *models.Job) map[string]interface{} {
	req := map[string]interface{}{
		"engine":   "google",
		"query":    job.Query,
		"location": job.Location,
		"device":   defaultString(job.Options.Device, "desktop"),
		"locale":   defaultString(job.Options.Locale, "en-US"),
		"pages":    defaultInt(job.Options.Pages, 1),
	}
	if job.Options.CaptureHTML || job.Options.CapturePNG {
		req["render"] = true
	}
	return req
}

type BingAdapter struct{}

func (a *BingAdapter) ID() string { return "bing" }

func (a *BingAdapter) BuildRequest(job *models.Job) map[string]interface{} {
	req := map[string]interface{}{
		"engine":   "bing",
		"query":    job.Query,
		"location": job.Location,
		"device":   defaultString(job.Options.Device, "desktop"),
		"mkt":      defaultString(job.Options.Locale, "en-US"),
		"count":    defaultInt(job.Options.Pages, 1) * 10,
	}
	if job.Options.CaptureHTML || job.Options.CapturePNG {
		req["render"] = true
	}
	return req
}

func defaultString(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func defaultInt(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}
