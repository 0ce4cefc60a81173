package db

import (
	"context"
	"reflect"
	"sync"

	"news-digest/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection keeps upserted articles keyed by url and records every call.
type fakeCollection struct {
	mu sync.Mutex

	docs map[string]domain.Article

	bulkErr       error
	bulkResult    *mongo.BulkWriteResult
	updateErrs    map[string]error
	bulkCalls     int
	updateCalls   int
	insertErr     error
	inserted      []interface{}
	findDocs      []interface{}
	findByURL     map[string][]interface{}
	findFilters   []interface{}
	findOpts      []*options.FindOptions
	aggDocs       []interface{}
	aggPipelines  []interface{}
	deleteErr     error
	count         int64
	countFilters  []interface{}
	deleteFilters []interface{}
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{
		docs:       map[string]domain.Article{},
		updateErrs: map[string]error{},
	}
}

func (f *fakeCollection) upsert(filter, update interface{}) (matched, modified, upserted int64) {
	url := filter.(bson.M)["url"].(string)
	article := update.(bson.M)["$set"].(domain.Article)

	existing, ok := f.docs[url]
	f.docs[url] = article
	if !ok {
		return 0, 0, 1
	}
	if reflect.DeepEqual(existing, article) {
		return 1, 0, 0
	}
	return 1, 1, 0
}

func (f *fakeCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++

	if f.bulkErr != nil {
		return f.bulkResult, f.bulkErr
	}

	res := &mongo.BulkWriteResult{}
	for _, m := range models {
		um := m.(*mongo.UpdateOneModel)
		matched, modified, upserted := f.upsert(um.Filter, um.Update)
		res.MatchedCount += matched
		res.ModifiedCount += modified
		res.UpsertedCount += upserted
	}
	return res, nil
}

func (f *fakeCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	if err := f.updateErrs[filter.(bson.M)["url"].(string)]; err != nil {
		return nil, err
	}
	matched, modified, upserted := f.upsert(filter, update)
	return &mongo.UpdateResult{MatchedCount: matched, ModifiedCount: modified, UpsertedCount: upserted}, nil
}

func (f *fakeCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, document)
	return &mongo.InsertOneResult{InsertedID: primitive.NewObjectID()}, nil
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findFilters = append(f.findFilters, filter)
	if len(opts) > 0 {
		f.findOpts = append(f.findOpts, opts[0])
	}
	if m, ok := filter.(bson.M); ok && f.findByURL != nil {
		if url, ok := m["url"].(string); ok {
			return mongo.NewCursorFromDocuments(f.findByURL[url], nil, nil)
		}
	}
	return mongo.NewCursorFromDocuments(f.findDocs, nil, nil)
}

func (f *fakeCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.aggPipelines = append(f.aggPipelines, pipeline)
	return mongo.NewCursorFromDocuments(f.aggDocs, nil, nil)
}

func (f *fakeCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.countFilters = append(f.countFilters, filter)
	return f.count, nil
}

func (f *fakeCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteFilters = append(f.deleteFilters, filter)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	ids := filter.(bson.M)["_id"].(bson.M)["$in"].([]primitive.ObjectID)
	return &mongo.DeleteResult{DeletedCount: int64(len(ids))}, nil
}
