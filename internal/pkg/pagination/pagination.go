package pagination

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/contactly/core/internal/pkg/response"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// FromContext extracts and validates pagination params from the request.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.DefaultQuery("page", "1"), DefaultPage)
	size := parseIntOr(c.DefaultQuery("size", "10"), DefaultSize)

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Query{Page: page, Size: size}
}

// Find runs a paginated query against a collection and decodes the page into
// dest, returning the pagination metadata.
func Find[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, q Query, dest *[]T) (response.Pagination, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return response.Pagination{}, err
	}

	opts := options.Find().
		SetSkip(int64((q.Page - 1) * q.Size)).
		SetLimit(int64(q.Size))
	if len(sort) > 0 {
		opts.SetSort(sort)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return response.Pagination{}, err
	}
	if err := cur.All(ctx, dest); err != nil {
		return response.Pagination{}, err
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))

	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}, nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
