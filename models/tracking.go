package models

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the status of one pipeline stage
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageSuccess    StageStatus = "success"
	StageFailed     StageStatus = "failed"
)

// JobStatus is the aggregate status derived from the four stage statuses
type JobStatus string

const (
	JobPending        JobStatus = "pending"
	JobInProgress     JobStatus = "in_progress"
	JobCompleted      JobStatus = "completed"
	JobPartialSuccess JobStatus = "partial_success"
	JobFailed         JobStatus = "failed"
)

// JobTrackingRecord is the authoritative status ledger for a job,
// keyed by job_id. Never deleted.
type JobTrackingRecord struct {
	JobID               uuid.UUID   `json:"job_id" db:"job_id"`
	ExternalID          string      `json:"external_id" db:"external_id"` // assigned by the scraping service
	Query               string      `json:"query" db:"query"`
	Location            string      `json:"location" db:"location"`
	Platform            string      `json:"platform" db:"platform"`
	APICallStatus       StageStatus `json:"api_call_status" db:"api_call_status"`
	SerpProcessingStatus StageStatus `json:"serp_processing_status" db:"serp_processing_status"`
	AdsExtractionStatus StageStatus `json:"ads_extraction_status" db:"ads_extraction_status"`
	RenderingStatus     StageStatus `json:"rendering_status" db:"rendering_status"`
	Status              JobStatus   `json:"status" db:"status"`
	ErrorMessage        string      `json:"error_message" db:"error_message"`
	NewAdsCount         int         `json:"new_ads_count" db:"new_ads_count"`
	NewAdvertisersCount int         `json:"new_advertisers_count" db:"new_advertisers_count"`
	SerpID              *uuid.UUID  `json:"serp_id" db:"serp_id"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// NewJobTrackingRecord creates the ledger entry for a freshly accepted job
func NewJobTrackingRecord(job *Job) *JobTrackingRecord {
	now := time.Now()
	return &JobTrackingRecord{
		JobID:                job.ID,
		Query:                job.Query,
		Location:             job.Location,
		Platform:             job.Platform,
		APICallStatus:        StagePending,
		SerpProcessingStatus: StagePending,
		AdsExtractionStatus:  StagePending,
		RenderingStatus:      StagePending,
		Status:               JobPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// DeriveStatus computes the aggregate status from the four stage statuses.
// A job with a failed api_call or serp_processing exposes no extracted data
// and is failed outright; failures past serp_processing degrade to
// partial_success because the SERP data already persisted stays visible.
func (r *JobTrackingRecord) DeriveStatus() JobStatus {
	if r.APICallStatus == StageFailed || r.SerpProcessingStatus == StageFailed {
		return JobFailed
	}
	if r.APICallStatus == StageSuccess && r.SerpProcessingStatus == StageSuccess {
		if r.AdsExtractionStatus == StageFailed || r.RenderingStatus == StageFailed {
			return JobPartialSuccess
		}
		if r.AdsExtractionStatus == StageSuccess && r.RenderingStatus == StageSuccess {
			return JobCompleted
		}
	}
	if r.APICallStatus == StagePending && r.SerpProcessingStatus == StagePending &&
		r.AdsExtractionStatus == StagePending && r.RenderingStatus == StagePending {
		return JobPending
	}
	return JobInProgress
}

// Terminal reports whether the aggregate status can no longer change
// without an explicit retry.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobPartialSuccess || s == JobFailed
}
