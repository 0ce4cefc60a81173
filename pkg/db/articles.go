package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news-digest/pkg/domain"
	"news-digest/pkg/normalizer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WindowQuery selects articles by publication time and source.
// Nil bounds leave that side open; an empty Sources matches every source.
type WindowQuery struct {
	From    *time.Time
	To      *time.Time
	Sources []string
	Limit   int
}

// UpsertBatch normalizes items and writes them keyed by URL in one unordered
// bulk operation. Unusable items are skipped with a reason. If the bulk call
// fails outright every item is retried on its own and failures are collected
// separately.
func (c *Client) UpsertBatch(ctx context.Context, source string, items []domain.RawArticle) domain.BatchResult {
	result := domain.BatchResult{
		Source:           source,
		TotalItems:       len(items),
		SkippedItems:     []string{},
		BulkWriteErrors:  []string{},
		IndividualErrors: []string{},
	}

	articles := make([]domain.Article, 0, len(items))
	for i, item := range items {
		article, err := normalizer.Normalize(item, source)
		if err == nil {
			err = normalizer.Storable(article)
		}
		switch {
		case errors.Is(err, normalizer.ErrNoUsableURL):
			result.SkippedItems = append(result.SkippedItems, fmt.Sprintf("Item %d: Missing URL", i))
		case errors.Is(err, normalizer.ErrMissingTitle):
			result.SkippedItems = append(result.SkippedItems, fmt.Sprintf("Item %d: Missing title", i))
		case err != nil:
			result.SkippedItems = append(result.SkippedItems, fmt.Sprintf("Item %d: Error processing - %v", i, err))
		default:
			articles = append(articles, article)
		}
	}
	result.ProcessedItems = len(articles)

	if len(articles) == 0 {
		return result
	}
	if err := c.ready(c.articles); err != nil {
		result.BulkWriteErrors = append(result.BulkWriteErrors, err.Error())
		return result
	}

	models := make([]mongo.WriteModel, 0, len(articles))
	for _, a := range articles {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": a.URL}).
			SetUpdate(bson.M{"$set": a}).
			SetUpsert(true))
	}

	res, err := c.articles.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err == nil {
		addBulkCounts(&result, res)
		return result
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		// unordered: the writes without an error went through
		addBulkCounts(&result, res)
		for _, we := range bwe.WriteErrors {
			result.BulkWriteErrors = append(result.BulkWriteErrors, fmt.Sprintf("index %d: %s", we.Index, we.Message))
		}
		if bwe.WriteConcernError != nil {
			result.BulkWriteErrors = append(result.BulkWriteErrors, bwe.WriteConcernError.Message)
		}
		return result
	}

	c.logger.Warn("bulk upsert failed, falling back to per-item upserts",
		"source", source, "items", len(articles), "error", err)
	result.BulkWriteErrors = append(result.BulkWriteErrors, err.Error())

	for _, a := range articles {
		res, err := c.articles.UpdateOne(ctx, bson.M{"url": a.URL}, bson.M{"$set": a}, options.Update().SetUpsert(true))
		if err != nil {
			result.IndividualErrors = append(result.IndividualErrors, fmt.Sprintf("%s: %v", a.URL, err))
			continue
		}
		result.Matched += res.MatchedCount
		result.Modified += res.ModifiedCount
		result.Upserted += res.UpsertedCount
	}
	return result
}

func addBulkCounts(result *domain.BatchResult, res *mongo.BulkWriteResult) {
	if res == nil {
		return
	}
	result.Matched += res.MatchedCount
	result.Modified += res.ModifiedCount
	result.Upserted += res.UpsertedCount
}

// QueryByWindow returns articles whose published time lies within the inclusive
// bounds, newest first. Bounds are converted into the storage zone.
func (c *Client) QueryByWindow(ctx context.Context, q WindowQuery) ([]domain.Article, error) {
	if err := c.ready(c.articles); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "published_time", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := c.articles.Find(ctx, windowFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer cursor.Close(ctx)

	articles := []domain.Article{}
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode articles: %w", err)
	}
	return articles, nil
}

func windowFilter(q WindowQuery) bson.M {
	filter := bson.M{}

	bounds := bson.M{}
	if q.From != nil {
		bounds["$gte"] = domain.ToStorageTime(*q.From)
	}
	if q.To != nil {
		bounds["$lte"] = domain.ToStorageTime(*q.To)
	}
	if len(bounds) > 0 {
		filter["published_time"] = bounds
	}

	if len(q.Sources) > 0 {
		filter["source"] = bson.M{"$in": q.Sources}
	}
	return filter
}

// CountArticles returns the number of stored articles.
func (c *Client) CountArticles(ctx context.Context) (int64, error) {
	if err := c.ready(c.articles); err != nil {
		return 0, err
	}
	n, err := c.articles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// StatsBySource counts stored articles per source, largest first.
func (c *Client) StatsBySource(ctx context.Context) ([]domain.SourceCount, error) {
	if err := c.ready(c.articles); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$source"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	cursor, err := c.articles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate source stats: %w", err)
	}
	defer cursor.Close(ctx)

	stats := []domain.SourceCount{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode source stats: %w", err)
	}
	return stats, nil
}

// CountDuplicateURLs lists URLs stored in more than one document.
func (c *Client) CountDuplicateURLs(ctx context.Context) ([]domain.DuplicateURL, error) {
	if err := c.ready(c.articles); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$url"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "sources", Value: bson.D{{Key: "$addToSet", Value: "$source"}}},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	cursor, err := c.articles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate duplicates: %w", err)
	}
	defer cursor.Close(ctx)

	dups := []domain.DuplicateURL{}
	if err := cursor.All(ctx, &dups); err != nil {
		return nil, fmt.Errorf("failed to decode duplicates: %w", err)
	}
	return dups, nil
}

// PruneDuplicates keeps, for every duplicated URL, the document with the most
// recent published time and deletes the others. Returns the number removed.
func (c *Client) PruneDuplicates(ctx context.Context) (int64, error) {
	dups, err := c.CountDuplicateURLs(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, dup := range dups {
		ids, err := c.idsNewestFirst(ctx, dup.URL)
		if err != nil {
			return removed, err
		}
		if len(ids) < 2 {
			continue
		}

		res, err := c.articles.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids[1:]}})
		if err != nil {
			return removed, fmt.Errorf("failed to delete duplicates of %s: %w", dup.URL, err)
		}
		removed += res.DeletedCount
	}

	if removed > 0 {
		c.logger.Info("pruned duplicate articles", "urls", len(dups), "removed", removed)
	}
	return removed, nil
}

func (c *Client) idsNewestFirst(ctx context.Context, url string) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "published_time", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"_id": 1})

	cursor, err := c.articles.Find(ctx, bson.M{"url": url}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates of %s: %w", url, err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			c.logger.Warn("skipping undecodable duplicate", "url", url, "error", err)
			continue
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

// GetAllArticles fetches every stored article
func (c *Client) GetAllArticles(ctx context.Context) ([]domain.Article, error) {
	if err := c.ready(c.articles); err != nil {
		return nil, err
	}

	cursor, err := c.articles.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer cursor.Close(ctx)

	var articles []domain.Article
	for cursor.Next(ctx) {
		var a domain.Article
		if err := cursor.Decode(&a); err != nil {
			continue // Skip invalid documents
		}
		if a.URL != "" {
			articles = append(articles, a)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return articles, nil
}
