package repository

import (
	"context"
	"errors"

	"gravity/internal/app/gravity/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// Стандартные ошибки репозиториев для обработки в service layer
	ErrBookNotFound       = errors.New("book not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrReviewTextNotFound = errors.New("review text not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateReview    = errors.New("user already reviewed this book")
)

// BookAggregate - результат пересчёта рейтинга книги
type BookAggregate struct {
	AverageRating float64
	RatingsCount  int
}

// BookListFilter - фильтрация/сортировка/пагинация каталога
type BookListFilter struct {
	Genre string
	Sort  string // Имя поля, префикс "-" для убывания (по умолчанию -created_at)
	Page  int
	Limit int
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]entity.UserProfile, error)
	AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*entity.User, error)
	RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*entity.User, error)
}

type BookRepository interface {
	Create(ctx context.Context, book *entity.Book) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Book, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]entity.Book, error)
	List(ctx context.Context, filter BookListFilter) ([]entity.Book, int64, error)
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
	UpdateAggregate(ctx context.Context, id primitive.ObjectID, agg BookAggregate) error
}

type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Review, error)
	GetByBookID(ctx context.Context, bookID primitive.ObjectID) ([]entity.Review, error)
	AppendReply(ctx context.Context, reviewID, reviewTextID primitive.ObjectID, reply *entity.Reply) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	AggregateByBook(ctx context.Context, bookID primitive.ObjectID) (BookAggregate, error)
}
