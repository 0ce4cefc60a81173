package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Article represents a normalized news article stored in the database.
// Nullable fields are pointers so that absent values are written as explicit nulls.
type Article struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	URL           string             `bson:"url" json:"url"`
	Title         *string            `bson:"title" json:"title"`
	Media         *string            `bson:"media" json:"media"`
	PublishedTime *time.Time         `bson:"published_time" json:"published_time"`
	Author        *string            `bson:"author" json:"author"`
	Content       *string            `bson:"content" json:"content"`
	Source        string             `bson:"source" json:"source"`
}

// ContentComplete reports whether the article carries both a title and content.
func (a Article) ContentComplete() bool {
	return a.Title != nil && *a.Title != "" && a.Content != nil && *a.Content != ""
}

// RawArticle is what a source adapter produces. Every field is optional;
// an empty string means the adapter could not find a value.
type RawArticle struct {
	URL     string
	Title   string
	Media   string
	Author  string
	Content string
	Source  string

	// PublishedAt is set when the adapter already has a structured timestamp.
	PublishedAt *time.Time
	// PublishedRaw holds a textual timestamp when no structured one is available.
	PublishedRaw string
}
