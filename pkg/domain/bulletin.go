package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BulletinType is the document type written for synthesized bulletins.
const BulletinType = "news_bulletin"

// Bulletin is a synthesized digest of a bounded set of articles.
type Bulletin struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	BulletinID string             `bson:"bulletin_id" json:"bulletin_id"`
	Type       string             `bson:"type" json:"type"`
	Content    string             `bson:"content" json:"content"`
	ImageURL   *string            `bson:"image_url" json:"image_url"`
	References []string           `bson:"references" json:"references"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	Metadata   BulletinMetadata   `bson:"metadata" json:"metadata"`
}

type BulletinMetadata struct {
	ArticlesProcessed int        `bson:"articles_processed" json:"articles_processed"`
	TotalFoundInDB    int        `bson:"total_found_in_db" json:"total_found_in_db"`
	SourcesUsed       []string   `bson:"sources_used" json:"sources_used"`
	SourcesCount      int        `bson:"sources_count" json:"sources_count"`
	GeneratedAt       time.Time  `bson:"generated_at" json:"generated_at"`
	FilterInfo        FilterInfo `bson:"filter_info" json:"filter_info"`
	Success           bool       `bson:"success" json:"success"`
}

// FilterInfo records the window parameters that produced a bulletin.
type FilterInfo struct {
	Hours   int      `bson:"hours" json:"hours"`
	Sources []string `bson:"sources" json:"sources"`
	Limit   int      `bson:"limit" json:"limit"`
}

// SaveResult reports the outcome of persisting a bulletin. Failures are
// reported through Success and Error rather than a Go error.
type SaveResult struct {
	Success           bool      `json:"success"`
	BulletinID        string    `json:"bulletin_id,omitempty"`
	InsertedID        string    `json:"inserted_id,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	ImageURL          *string   `json:"image_url"`
	References        []string  `json:"references"`
	ArticlesProcessed int       `json:"articles_processed"`
	SourcesCount      int       `json:"sources_count"`
	Error             string    `json:"error,omitempty"`
}

// BulletinStats summarizes the bulletin collection.
type BulletinStats struct {
	Total  int64      `json:"total_bulletins"`
	Recent int64      `json:"recent_bulletins_7d"`
	Latest *time.Time `json:"latest_bulletin"`
	Oldest *time.Time `json:"oldest_bulletin"`
}

// BulletinPage is one page of bulletins ordered by creation time, newest first.
type BulletinPage struct {
	Bulletins  []Bulletin `json:"bulletins"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
}
