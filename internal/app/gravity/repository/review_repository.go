package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/pkg/logger"
	"gravity/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const serviceName = "gravity"

type reviewRepository struct {
	collection *mongo.Collection
}

// NewReviewRepository создает новый репозиторий отзывов.
// Создает индекс по book_id для выборки отзывов книги и уникальный
// составной индекс (book_id, user_id): не больше одного отзыва
// на книгу от одного пользователя
func NewReviewRepository(db *mongo.Database) ReviewRepository {
	collection := db.Collection("reviews")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bookIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "book_id", Value: 1},
		},
		Options: options.Index().SetName("book_id_idx"),
	}

	if _, err := collection.Indexes().CreateOne(ctx, bookIndexModel); err != nil {
		// Логируем ошибку, но не прерываем работу - индекс может уже существовать
		logger.Warn().Err(err).Msg("failed to create index on book_id")
	}

	uniqueIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "book_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetName("book_user_unique_idx").SetUnique(true),
	}

	if _, err := collection.Indexes().CreateOne(ctx, uniqueIndexModel); err != nil {
		logger.Warn().Err(err).Msg("failed to create unique index on (book_id, user_id)")
	}

	return &reviewRepository{
		collection: collection,
	}
}

// Create создает новый отзыв в MongoDB.
// Нарушение уникального индекса (book_id, user_id) возвращается
// как ErrDuplicateReview
func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpInsert, "reviews")
	defer timer.ObserveDuration()

	review.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReview
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpInsert)
		return fmt.Errorf("failed to create review: %w", err)
	}

	// Устанавливаем ID из результата вставки
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid
	}

	return nil
}

// GetByID получает отзыв по ID
func (r *reviewRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Review, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "reviews")
	defer timer.ObserveDuration()

	filter := bson.M{"_id": id}

	var review entity.Review
	err := r.collection.FindOne(ctx, filter).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReviewNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}

// GetByBookID получает все отзывы по ID книги, новые первыми.
// Использует индекс book_id_idx
func (r *reviewRepository) GetByBookID(ctx context.Context, bookID primitive.ObjectID) ([]entity.Review, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "reviews")
	defer timer.ObserveDuration()

	filter := bson.M{"book_id": bookID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var reviews []entity.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}

// AppendReply добавляет ответ в конец массива replies нужного текста отзыва.
// Адресация вложенного элемента через arrayFilters: отзыв и текст должны
// существовать, иначе MatchedCount/ModifiedCount будет 0
func (r *reviewRepository) AppendReply(ctx context.Context, reviewID, reviewTextID primitive.ObjectID, reply *entity.Reply) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpUpdate, "reviews")
	defer timer.ObserveDuration()

	reply.ID = primitive.NewObjectID()
	reply.CreatedAt = time.Now()

	filter := bson.M{"_id": reviewID}
	update := bson.M{
		"$push": bson.M{
			"review_texts.$[rt].replies": reply,
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"rt._id": reviewTextID}},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpUpdate)
		return fmt.Errorf("failed to append reply: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrReviewNotFound
	}
	if result.ModifiedCount == 0 {
		// Отзыв есть, но текст с таким ID в нем не найден
		return ErrReviewTextNotFound
	}

	return nil
}

// Delete удаляет отзыв вместе со всеми вложенными текстами и ответами
// (они живут в том же документе)
func (r *reviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpDelete, "reviews")
	defer timer.ObserveDuration()

	filter := bson.M{"_id": id}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpDelete)
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrReviewNotFound
	}

	return nil
}

// AggregateByBook пересчитывает количество отзывов и средний рейтинг книги
// по полному набору отзывов ($match + $group). Ноль отзывов - нулевой агрегат
func (r *reviewRepository) AggregateByBook(ctx context.Context, bookID primitive.ObjectID) (BookAggregate, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpAggregate, "reviews")
	defer timer.ObserveDuration()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"book_id": bookID}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$book_id",
			"n_rating":   bson.M{"$sum": 1},
			"avg_rating": bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpAggregate)
		return BookAggregate{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		NRating   int     `bson:"n_rating"`
		AvgRating float64 `bson:"avg_rating"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return BookAggregate{}, fmt.Errorf("failed to decode aggregate: %w", err)
	}

	if len(results) == 0 {
		return BookAggregate{}, nil
	}

	return BookAggregate{
		AverageRating: results[0].AvgRating,
		RatingsCount:  results[0].NRating,
	}, nil
}
