package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serpwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Job Tracking
// =============================================================================

// UpsertTracking writes the full tracking record, keyed by job_id, so
// concurrent status updates to different jobs stay independent.
func (s *PostgresStore) UpsertTracking(ctx context.Context, r *models.JobTrackingRecord) error {
	query := `
		INSERT INTO job_tracking (
			job_id, external_id, query, location, platform,
			api_call_status, serp_processing_status, ads_extraction_status, rendering_status,
			status, error_message, new_ads_count, new_advertisers_count, serp_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (job_id) DO UPDATE SET
			external_id = COALESCE(NULLIF(EXCLUDED.external_id, ''), job_tracking.external_id),
			api_call_status = EXCLUDED.api_call_status,
			serp_processing_status = EXCLUDED.serp_processing_status,
			ads_extraction_status = EXCLUDED.ads_extraction_status,
			rendering_status = EXCLUDED.rendering_status,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			new_ads_count = EXCLUDED.new_ads_count,
			new_advertisers_count = EXCLUDED.new_advertisers_count,
			serp_id = COALESCE(EXCLUDED.serp_id, job_tracking.serp_id),
			updated_at = NOW()`

	r.UpdatedAt = time.Now()
	_, err := s.pool.Exec(ctx, query,
		r.JobID, r.ExternalID, r.Query, r.Location, r.Platform,
		r.APICallStatus, r.SerpProcessingStatus, r.AdsExtractionStatus, r.RenderingStatus,
		r.Status, r.ErrorMessage, r.NewAdsCount, r.NewAdvertisersCount, r.SerpID,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetTracking(ctx context.Context, jobID uuid.UUID) (*models.JobTrackingRecord, error) {
	query := trackingSelect + ` WHERE job_id = $1`

	var r models.JobTrackingRecord
	err := s.pool.QueryRow(ctx, query, jobID).Scan(trackingFields(&r)...)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListTrackingByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.JobTrackingRecord, error) {
	query := trackingSelect + ` WHERE status = $1 ORDER BY updated_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTracking(rows)
}

func (s *PostgresStore) ListTracking(ctx context.Context, limit, offset int) ([]models.JobTrackingRecord, error) {
	query := trackingSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTracking(rows)
}

const trackingSelect = `
	SELECT job_id, external_id, query, location, platform,
		api_call_status, serp_processing_status, ads_extraction_status, rendering_status,
		status, error_message, new_ads_count, new_advertisers_count, serp_id,
		created_at, updated_at
	FROM job_tracking`

func trackingFields(r *models.JobTrackingRecord) []interface{} {
	return []interface{}{
		&r.JobID, &r.ExternalID, &r.Query, &r.Location, &r.Platform,
		&r.APICallStatus, &r.SerpProcessingStatus, &r.AdsExtractionStatus, &r.RenderingStatus,
		&r.Status, &r.ErrorMessage, &r.NewAdsCount, &r.NewAdvertisersCount, &r.SerpID,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func collectTracking(rows pgx.Rows) ([]models.JobTrackingRecord, error) {
	var records []models.JobTrackingRecord
	for rows.Next() {
		var r models.JobTrackingRecord
		if err := rows.Scan(trackingFields(&r)...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// SERP Results
// =============================================================================

func (s *PostgresStore) CreateSerpResult(ctx context.Context, r *models.SerpResult) error {
	query := `
		INSERT INTO serp_results (
			id, job_id, query, location, platform, payload_kind, raw_content,
			ads_count, organic_count, local_count, fetched_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		r.ID, r.JobID, r.Query, r.Location, r.Platform, r.PayloadKind, r.RawContent,
		r.AdsCount, r.OrganicCount, r.LocalCount, r.FetchedAt, r.CreatedAt,
	).Scan(&r.ID)
}

func (s *PostgresStore) UpdateSerpCounts(ctx context.Context, id uuid.UUID, ads, organic, local int) error {
	query := `UPDATE serp_results SET ads_count = $2, organic_count = $3, local_count = $4 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, ads, organic, local)
	return err
}

func (s *PostgresStore) GetSerpResult(ctx context.Context, id uuid.UUID) (*models.SerpResult, error) {
	query := `
		SELECT id, job_id, query, location, platform, payload_kind, raw_content,
			ads_count, organic_count, local_count, fetched_at, created_at
		FROM serp_results WHERE id = $1`

	var r models.SerpResult
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.JobID, &r.Query, &r.Location, &r.Platform, &r.PayloadKind, &r.RawContent,
		&r.AdsCount, &r.OrganicCount, &r.LocalCount, &r.FetchedAt, &r.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// =============================================================================
// Ads
// =============================================================================

func (s *PostgresStore) CreateAd(ctx context.Context, ad *models.Ad) error {
	query := `
		INSERT INTO ads (
			id, serp_id, platform, category, position, position_overall,
			title, description, display_url, destination_url, advertiser_domain,
			sitelinks, extensions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		ad.ID, ad.SerpID, ad.Platform, ad.Category, ad.Position, ad.PositionOverall,
		ad.Title, ad.Description, ad.DisplayURL, ad.DestinationURL, ad.AdvertiserDomain,
		ad.Sitelinks, ad.Extensions, ad.CreatedAt,
	).Scan(&ad.ID)
}

func (s *PostgresStore) ListAdsBySerp(ctx context.Context, serpID uuid.UUID) ([]models.Ad, error) {
	query := `
		SELECT id, serp_id, platform, category, position, position_overall,
			title, description, display_url, destination_url, advertiser_domain,
			sitelinks, extensions, created_at
		FROM ads WHERE serp_id = $1 ORDER BY position_overall, category, position`

	rows, err := s.pool.Query(ctx, query, serpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ads []models.Ad
	for rows.Next() {
		var ad models.Ad
		if err := rows.Scan(
			&ad.ID, &ad.SerpID, &ad.Platform, &ad.Category, &ad.Position, &ad.PositionOverall,
			&ad.Title, &ad.Description, &ad.DisplayURL, &ad.DestinationURL, &ad.AdvertiserDomain,
			&ad.Sitelinks, &ad.Extensions, &ad.CreatedAt,
		); err != nil {
			return nil, err
		}
		ads = append(ads, ad)
	}
	return ads, rows.Err()
}

// =============================================================================
// Advertisers
// =============================================================================

// UpsertAdvertiser records a registrable domain and reports whether it was
// new. The RETURNING xmax trick distinguishes insert from update.
func (s *PostgresStore) UpsertAdvertiser(ctx context.Context, domain string, seenAt time.Time) (bool, error) {
	query := `
		INSERT INTO advertisers (id, domain, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (domain) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, query, uuid.New(), domain, seenAt).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// =============================================================================
// Ad Renderings
// =============================================================================

func (s *PostgresStore) CreateAdRendering(ctx context.Context, r *models.AdRendering) error {
	query := `
		INSERT INTO ad_renderings (
			id, ad_id, rendering_target, rendering_type, url, status,
			storage_url, error_message, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		r.ID, r.AdID, r.Target, r.Type, r.URL, r.Status,
		r.StorageURL, r.ErrorMessage, r.Attempts, r.CreatedAt,
	).Scan(&r.ID)
}

func (s *PostgresStore) GetPendingRenderings(ctx context.Context, limit int) ([]models.AdRendering, error) {
	query := `
		SELECT id, ad_id, rendering_target, rendering_type, url, status,
			storage_url, error_message, attempts, created_at
		FROM ad_renderings
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var renderings []models.AdRendering
	for rows.Next() {
		var r models.AdRendering
		if err := rows.Scan(
			&r.ID, &r.AdID, &r.Target, &r.Type, &r.URL, &r.Status,
			&r.StorageURL, &r.ErrorMessage, &r.Attempts, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		renderings = append(renderings, r)
	}
	return renderings, rows.Err()
}

func (s *PostgresStore) UpdateRenderingStatus(ctx context.Context, id uuid.UUID, status string, storageURL *string, errMsg string, attempts int) error {
	query := `
		UPDATE ad_renderings SET
			status = $2, storage_url = COALESCE($3, storage_url), error_message = $4, attempts = $5
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, status, storageURL, errMsg, attempts)
	return err
}

// =============================================================================
// Pipeline Logs
// =============================================================================

func (s *PostgresStore) CreatePipelineLog(ctx context.Context, log *models.PipelineLog) error {
	query := `
		INSERT INTO pipeline_logs (job_id, timestamp, level, message, platform)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		log.JobID, log.Timestamp, log.Level, log.Message, log.Platform,
	).Scan(&log.ID)
}
