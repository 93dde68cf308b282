package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/playwright-community/playwright-go"

	"serpwatch/models"
	"serpwatch/storage"
)

// Uploader pushes rendering artifacts to S3-compatible storage
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// RenderingWorker drains pending ad_renderings rows and captures them
// with a headless browser. Each row gets up to three attempts; capture
// failures never touch the ad or the job ledger.
type RenderingWorker struct {
	store    *storage.PostgresStore
	uploader Uploader
	trigger  chan struct{}

	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewRenderingWorker(store *storage.PostgresStore, uploader Uploader) *RenderingWorker {
	return &RenderingWorker{
		store:    store,
		uploader: uploader,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger nudges the worker to run a batch ahead of its next tick
func (w *RenderingWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run starts the worker loop
func (w *RenderingWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.closeBrowser()

	for {
		select {
		case <-ctx.Done():
			log.Println("Rendering worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		case <-w.trigger:
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

// ProcessBatch captures every pending rendering up to batchSize
func (w *RenderingWorker) ProcessBatch(ctx context.Context, batchSize int) {
	renderings, err := w.store.GetPendingRenderings(ctx, batchSize)
	if err != nil {
		log.Printf("Rendering worker: query error: %v", err)
		return
	}
	if len(renderings) == 0 {
		return
	}

	log.Printf("Rendering worker: processing %d item(s)", len(renderings))

	var captured, failed int
	for i := range renderings {
		r := &renderings[i]

		storageURL, err := w.capture(ctx, r)
		if err != nil {
			failed++
			log.Printf("Rendering worker: failed %s (%s %s): %v", r.ID, r.Target, r.Type, err)

			newAttempts := r.Attempts + 1
			status := models.RenderStatusPending
			if newAttempts >= 3 {
				status = models.RenderStatusFailed
			}
			if err := w.store.UpdateRenderingStatus(ctx, r.ID, status, nil, err.Error(), newAttempts); err != nil {
				log.Printf("Rendering worker: failed to update %s: %v", r.ID, err)
			}
			continue
		}

		if err := w.store.UpdateRenderingStatus(ctx, r.ID, models.RenderStatusCaptured, &storageURL, "", r.Attempts+1); err != nil {
			log.Printf("Rendering worker: failed to update %s: %v", r.ID, err)
			failed++
			continue
		}

		captured++
		log.Printf("Rendering worker: captured %s -> %s", r.ID, storageURL)

		// pacing between page loads
		time.Sleep(500 * time.Millisecond)
	}

	if captured > 0 || failed > 0 {
		log.Printf("Rendering worker: captured %d, failed %d", captured, failed)
	}
}

// capture loads the rendering's URL and produces the requested artifact
func (w *RenderingWorker) capture(ctx context.Context, r *models.AdRendering) (string, error) {
	browser, err := w.ensureBrowser()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(r.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", fmt.Errorf("goto %s: %w", r.URL, err)
	}

	var data []byte
	var contentType string

	switch r.Type {
	case models.RenderTypePNG:
		data, err = page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("screenshot: %w", err)
		}
		contentType = "image/png"
	case models.RenderTypeHTML:
		content, err := page.Content()
		if err != nil {
			return "", fmt.Errorf("page content: %w", err)
		}
		data = []byte(content)
		contentType = "text/html"
	default:
		return "", fmt.Errorf("unknown rendering type: %s", r.Type)
	}

	key := fmt.Sprintf("renderings/%s/%s.%s", r.Target, r.ID, r.Type)
	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return w.uploader.PublicURL(key), nil
}

// ensureBrowser lazily starts playwright; renderings are optional and a
// machine without browsers installed should not pay for them at boot.
func (w *RenderingWorker) ensureBrowser() (playwright.Browser, error) {
	if w.browser != nil && w.browser.IsConnected() {
		return w.browser, nil
	}

	if w.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, err
		}
		w.pw = pw
	}

	browser, err := w.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	w.browser = browser
	return browser, nil
}

func (w *RenderingWorker) closeBrowser() {
	if w.browser != nil {
		w.browser.Close()
		w.browser = nil
	}
	if w.pw != nil {
		w.pw.Stop()
		w.pw = nil
	}
}

// NoOpUploader skips the actual upload. Used when storage credentials
// are not configured.
type NoOpUploader struct{}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func (u *NoOpUploader) PublicURL(key string) string {
	return "noop://" + key
}
