package service

import (
	"context"

	"gravity/internal/app/gravity/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookCache - кеш карточек книг. Промах - (nil, nil); любая ошибка кеша
// не критична и не должна ронять запрос
type BookCache interface {
	GetBook(ctx context.Context, id primitive.ObjectID) (*entity.Book, error)
	SetBook(ctx context.Context, book *entity.Book) error
	DeleteBook(ctx context.Context, id primitive.ObjectID) error
}

// TokenIssuer выпускает и проверяет JWT токены
type TokenIssuer interface {
	GenerateToken(userID primitive.ObjectID, email string) (string, error)
}
