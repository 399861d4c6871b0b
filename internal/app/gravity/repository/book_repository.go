package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type bookRepository struct {
	collection *mongo.Collection
}

func NewBookRepository(db *mongo.Database) BookRepository {
	return &bookRepository{
		collection: db.Collection("books"),
	}
}

// Create создает новую книгу в каталоге с нулевым агрегатом рейтинга
func (r *bookRepository) Create(ctx context.Context, book *entity.Book) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpInsert, "books")
	defer timer.ObserveDuration()

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.AverageRating = 0
	book.RatingsCount = 0

	result, err := r.collection.InsertOne(ctx, book)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpInsert)
		return fmt.Errorf("failed to create book: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		book.ID = oid
	}

	return nil
}

// GetByID получает книгу по ID
func (r *bookRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Book, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "books")
	defer timer.ObserveDuration()

	var book entity.Book
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return &book, nil
}

// GetByIDs получает книги по списку ID (для отдачи reading list)
func (r *bookRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]entity.Book, error) {
	if len(ids) == 0 {
		return []entity.Book{}, nil
	}

	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "books")
	defer timer.ObserveDuration()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	defer cursor.Close(ctx)

	var books []entity.Book
	if err := cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	return books, nil
}

// List возвращает страницу каталога с фильтром по жанру и сортировкой,
// плюс общее количество подходящих книг
func (r *bookRepository) List(ctx context.Context, filter BookListFilter) ([]entity.Book, int64, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "books")
	defer timer.ObserveDuration()

	query := bson.M{}
	if filter.Genre != "" {
		query["genre"] = filter.Genre
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	sortField := "created_at"
	sortDir := -1
	if filter.Sort != "" {
		sortField = filter.Sort
		sortDir = 1
		if strings.HasPrefix(sortField, "-") {
			sortField = strings.TrimPrefix(sortField, "-")
			sortDir = -1
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDir}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, 0, fmt.Errorf("failed to find books: %w", err)
	}
	defer cursor.Close(ctx)

	var books []entity.Book
	if err := cursor.All(ctx, &books); err != nil {
		return nil, 0, fmt.Errorf("failed to decode books: %w", err)
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	return books, total, nil
}

// ListIDs возвращает ID всех книг (для фоновой сверки рейтингов)
func (r *bookRepository) ListIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "books")
	defer timer.ObserveDuration()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to list book ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode book ids: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	return ids, nil
}

// UpdateAggregate атомарно записывает пару average_rating/ratings_count.
// Единственная точка записи производных полей книги
func (r *bookRepository) UpdateAggregate(ctx context.Context, id primitive.ObjectID, agg BookAggregate) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpUpdate, "books")
	defer timer.ObserveDuration()

	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"average_rating": agg.AverageRating,
			"ratings_count":  agg.RatingsCount,
			"updated_at":     time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpUpdate)
		return fmt.Errorf("failed to update book aggregate: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrBookNotFound
	}

	return nil
}
