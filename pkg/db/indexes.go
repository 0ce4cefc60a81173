package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var articleIndexes = []mongo.IndexModel{
	{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetName("uniq_url").SetUnique(true)},
	{Keys: bson.D{{Key: "published_time", Value: -1}}, Options: options.Index().SetName("idx_published_time_desc")},
	{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "content", Value: "text"}}, Options: options.Index().SetName("text_title_content")},
	{Keys: bson.D{{Key: "author", Value: 1}}, Options: options.Index().SetName("idx_author")},
	{Keys: bson.D{{Key: "source", Value: 1}}, Options: options.Index().SetName("idx_source")},
	{Keys: bson.D{{Key: "source", Value: 1}, {Key: "published_time", Value: -1}}, Options: options.Index().SetName("idx_source_pubtime")},
}

var bulletinIndexes = []mongo.IndexModel{
	{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("idx_created_at_desc")},
	{Keys: bson.D{{Key: "bulletin_id", Value: 1}}, Options: options.Index().SetName("uniq_bulletin_id").SetUnique(true)},
	{Keys: bson.D{{Key: "type", Value: 1}}, Options: options.Index().SetName("idx_type")},
	{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("idx_type_created")},
	{Keys: bson.D{{Key: "metadata.articles_processed", Value: -1}}, Options: options.Index().SetName("idx_articles_processed")},
	{Keys: bson.D{{Key: "content", Value: "text"}}, Options: options.Index().SetName("text_bulletin_content")},
}

// EnsureIndexes creates the article and bulletin indexes. Existing indexes
// with the same definition are left alone.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	articles, ok := c.articles.(*mongo.Collection)
	if !ok {
		return fmt.Errorf("article collection not initialized")
	}
	bulletins, ok := c.bulletins.(*mongo.Collection)
	if !ok {
		return fmt.Errorf("bulletin collection not initialized")
	}

	if _, err := articles.Indexes().CreateMany(ctx, articleIndexes); err != nil {
		return fmt.Errorf("create article indexes: %w", err)
	}
	if _, err := bulletins.Indexes().CreateMany(ctx, bulletinIndexes); err != nil {
		return fmt.Errorf("create bulletin indexes: %w", err)
	}

	c.logger.Info("indexes ensured",
		"article_indexes", len(articleIndexes), "bulletin_indexes", len(bulletinIndexes))
	return nil
}
