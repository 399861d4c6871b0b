package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/pkg/logger"
	"gravity/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	collection *mongo.Collection
}

// NewUserRepository создает новый репозиторий пользователей.
// Создает уникальный индекс по email
func NewUserRepository(db *mongo.Database) UserRepository {
	collection := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "email", Value: 1},
		},
		Options: options.Index().SetName("email_unique_idx").SetUnique(true),
	}

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		logger.Warn().Err(err).Msg("failed to create unique index on email")
	}

	return &userRepository{
		collection: collection,
	}
}

// Create создает нового пользователя. Email нормализуется к нижнему регистру
func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpInsert, "users")
	defer timer.ObserveDuration()

	user.Email = strings.ToLower(user.Email)
	if user.ReadingList == nil {
		user.ReadingList = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpInsert)
		return fmt.Errorf("failed to create user: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "users")
	defer timer.ObserveDuration()

	var user entity.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByEmail получает пользователя по email (для входа)
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "users")
	defer timer.ObserveDuration()

	var user entity.User
	err := r.collection.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// GetProfiles получает публичные профили пачкой - для резолва авторов
// отзывов и ответов одним запросом
func (r *userRepository) GetProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]entity.UserProfile, error) {
	profiles := make(map[primitive.ObjectID]entity.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpFind, "users")
	defer timer.ObserveDuration()

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		metrics.RecordMongoError(serviceName, metrics.MongoOpFind)
		return nil, fmt.Errorf("failed to find user profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var users []entity.UserProfile
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode user profiles: %w", err)
	}

	for _, u := range users {
		profiles[u.ID] = u
	}

	return profiles, nil
}

// AddToReadingList добавляет книгу в список чтения через $addToSet:
// повторное добавление не создает дубликата
func (r *userRepository) AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*entity.User, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpUpdate, "users")
	defer timer.ObserveDuration()

	filter := bson.M{"_id": userID}
	update := bson.M{"$addToSet": bson.M{"reading_list": bookID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user entity.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpUpdate)
		return nil, fmt.Errorf("failed to add to reading list: %w", err)
	}

	return &user, nil
}

// RemoveFromReadingList убирает книгу из списка чтения ($pull)
func (r *userRepository) RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*entity.User, error) {
	timer := metrics.NewMongoTimer(serviceName, metrics.MongoOpUpdate, "users")
	defer timer.ObserveDuration()

	filter := bson.M{"_id": userID}
	update := bson.M{"$pull": bson.M{"reading_list": bookID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user entity.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		metrics.RecordMongoError(serviceName, metrics.MongoOpUpdate)
		return nil, fmt.Errorf("failed to remove from reading list: %w", err)
	}

	return &user, nil
}
