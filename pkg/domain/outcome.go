package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// BatchResult is the outcome of upserting one source's batch.
type BatchResult struct {
	Source           string   `json:"source"`
	Matched          int64    `json:"matched"`
	Upserted         int64    `json:"upserted"`
	Modified         int64    `json:"modified"`
	TotalItems       int      `json:"total_items"`
	ProcessedItems   int      `json:"processed_items"`
	SkippedItems     []string `json:"skipped_items"`
	BulkWriteErrors  []string `json:"bulk_write_errors"`
	IndividualErrors []string `json:"individual_errors"`
}

// HasProblems reports whether any item was skipped or any write failed.
func (r BatchResult) HasProblems() bool {
	return len(r.SkippedItems) > 0 || len(r.BulkWriteErrors) > 0 || len(r.IndividualErrors) > 0
}

type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusError   OutcomeStatus = "error"
)

// IngestionOutcome is the transient per-source result of one collection run.
type IngestionOutcome struct {
	Source string        `json:"source"`
	Count  int           `json:"count"`
	Status OutcomeStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	DB     *BatchResult  `json:"db_stats,omitempty"`
}

// RunSummary aggregates every source outcome of one collection run.
type RunSummary struct {
	ExecutionTimeSeconds float64            `json:"execution_time_seconds"`
	Summary              RunTotals          `json:"summary"`
	DatabaseSummary      DatabaseSummary    `json:"database_summary"`
	Results              []IngestionOutcome `json:"results"`
}

type RunTotals struct {
	TotalSources      int `json:"total_sources"`
	SuccessfulSources int `json:"successful_sources"`
	FailedSources     int `json:"failed_sources"`
	TotalArticles     int `json:"total_articles"`
}

type DatabaseSummary struct {
	TotalMatched      int64          `json:"total_matched"`
	TotalUpserted     int64          `json:"total_upserted"`
	TotalModified     int64          `json:"total_modified"`
	TotalProcessed    int            `json:"total_processed"`
	TotalSkipped      int            `json:"total_skipped"`
	SourcesWithErrors []SourceErrors `json:"sources_with_errors"`
}

type SourceErrors struct {
	Source           string `json:"source"`
	SkippedItems     int    `json:"skipped_items"`
	BulkErrors       int    `json:"bulk_errors"`
	IndividualErrors int    `json:"individual_errors"`
}

// SourceCount is one row of the per-source article statistics.
type SourceCount struct {
	Source string `bson:"_id" json:"source"`
	Count  int64  `bson:"count" json:"count"`
}

// DuplicateURL describes a URL stored in more than one document.
type DuplicateURL struct {
	URL     string               `bson:"_id" json:"url"`
	Count   int                  `bson:"count" json:"count"`
	Sources []string             `bson:"sources" json:"sources"`
	IDs     []primitive.ObjectID `bson:"ids" json:"ids"`
}
