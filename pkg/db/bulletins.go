package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news-digest/pkg/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BulletinQuery selects bulletins by creation time. Sort is 1 for oldest
// first and -1 (or 0) for newest first.
type BulletinQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
	Sort  int
}

// SaveBulletin stores one bulletin built from content and the articles used to
// generate it. The image is a random non-empty media value among used and the
// references are their URLs in order. Write failures are reported in the
// returned result.
func (c *Client) SaveBulletin(ctx context.Context, content string, meta domain.BulletinMetadata, used []domain.Article) domain.SaveResult {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.SaveResult{Success: false, Error: fmt.Sprintf("generate bulletin id: %v", err)}
	}

	references := make([]string, 0, len(used))
	for _, a := range used {
		references = append(references, a.URL)
	}

	meta.ArticlesProcessed = len(used)
	meta.SourcesCount = len(meta.SourcesUsed)
	meta.Success = true
	if meta.SourcesUsed == nil {
		meta.SourcesUsed = []string{}
	}

	bulletin := domain.Bulletin{
		BulletinID: "bulletin_" + id.String(),
		Type:       domain.BulletinType,
		Content:    content,
		ImageURL:   c.pickImage(used),
		References: references,
		CreatedAt:  domain.ToStorageTime(c.now()),
		Metadata:   meta,
	}

	if err := c.ready(c.bulletins); err != nil {
		return domain.SaveResult{Success: false, Error: err.Error()}
	}
	res, err := c.bulletins.InsertOne(ctx, bulletin)
	if err != nil {
		c.logger.Error("failed to save bulletin", "bulletin_id", bulletin.BulletinID, "error", err)
		return domain.SaveResult{Success: false, Error: err.Error()}
	}

	insertedID := ""
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
	}

	return domain.SaveResult{
		Success:           true,
		BulletinID:        bulletin.BulletinID,
		InsertedID:        insertedID,
		CreatedAt:         bulletin.CreatedAt,
		ImageURL:          bulletin.ImageURL,
		References:        bulletin.References,
		ArticlesProcessed: meta.ArticlesProcessed,
		SourcesCount:      meta.SourcesCount,
	}
}

func (c *Client) pickImage(used []domain.Article) *string {
	var media []string
	for _, a := range used {
		if a.Media != nil && *a.Media != "" {
			media = append(media, *a.Media)
		}
	}
	if len(media) == 0 {
		return nil
	}
	chosen := media[c.pick(len(media))]
	return &chosen
}

// QueryBulletins returns bulletins created within the inclusive bounds.
func (c *Client) QueryBulletins(ctx context.Context, q BulletinQuery) ([]domain.Bulletin, error) {
	if err := c.ready(c.bulletins); err != nil {
		return nil, err
	}

	order := -1
	if q.Sort == 1 {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	filter := bson.M{}
	bounds := bson.M{}
	if q.From != nil {
		bounds["$gte"] = domain.ToStorageTime(*q.From)
	}
	if q.To != nil {
		bounds["$lte"] = domain.ToStorageTime(*q.To)
	}
	if len(bounds) > 0 {
		filter["created_at"] = bounds
	}

	return c.findBulletins(ctx, filter, opts)
}

// QueryBulletinsPage returns one page of bulletins, newest first. Pages start at 1.
func (c *Client) QueryBulletinsPage(ctx context.Context, page, pageSize int) (domain.BulletinPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	out := domain.BulletinPage{Page: page, PageSize: pageSize, Bulletins: []domain.Bulletin{}}

	if err := c.ready(c.bulletins); err != nil {
		return out, err
	}

	total, err := c.bulletins.CountDocuments(ctx, bson.M{})
	if err != nil {
		return out, fmt.Errorf("failed to count bulletins: %w", err)
	}
	out.Total = total
	out.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	bulletins, err := c.findBulletins(ctx, bson.M{}, opts)
	if err != nil {
		return out, err
	}
	out.Bulletins = bulletins
	return out, nil
}

// LatestBulletin returns the most recently created bulletin or ErrNotFound.
func (c *Client) LatestBulletin(ctx context.Context) (*domain.Bulletin, error) {
	bulletins, err := c.QueryBulletins(ctx, BulletinQuery{Limit: 1, Sort: -1})
	if err != nil {
		return nil, err
	}
	if len(bulletins) == 0 {
		return nil, ErrNotFound
	}
	return &bulletins[0], nil
}

// BulletinStats reports totals and the creation range of stored bulletins.
func (c *Client) BulletinStats(ctx context.Context) (domain.BulletinStats, error) {
	var stats domain.BulletinStats
	if err := c.ready(c.bulletins); err != nil {
		return stats, err
	}

	total, err := c.bulletins.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, fmt.Errorf("failed to count bulletins: %w", err)
	}
	stats.Total = total

	weekAgo := domain.ToStorageTime(c.now().Add(-7 * 24 * time.Hour))
	recent, err := c.bulletins.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": weekAgo}})
	if err != nil {
		return stats, fmt.Errorf("failed to count recent bulletins: %w", err)
	}
	stats.Recent = recent

	if latest, err := c.LatestBulletin(ctx); err == nil {
		stats.Latest = &latest.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return stats, err
	}

	oldest, err := c.QueryBulletins(ctx, BulletinQuery{Limit: 1, Sort: 1})
	if err != nil {
		return stats, err
	}
	if len(oldest) > 0 {
		stats.Oldest = &oldest[0].CreatedAt
	}
	return stats, nil
}

func (c *Client) findBulletins(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Bulletin, error) {
	cursor, err := c.bulletins.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bulletins: %w", err)
	}
	defer cursor.Close(ctx)

	bulletins := []domain.Bulletin{}
	if err := cursor.All(ctx, &bulletins); err != nil {
		return nil, fmt.Errorf("failed to decode bulletins: %w", err)
	}
	return bulletins, nil
}
