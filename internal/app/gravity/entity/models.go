package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Genres - фиксированный набор жанров книги
var Genres = []string{
	"Fiction", "Non-Fiction", "Science Fiction", "Fantasy",
	"Mystery", "Thriller", "Romance", "Biography",
	"History", "Self-Help", "Poetry", "Drama",
}

// IsValidGenre проверяет, что жанр входит в фиксированный набор
func IsValidGenre(genre string) bool {
	for _, g := range Genres {
		if g == genre {
			return true
		}
	}
	return false
}

type Book struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title         string             `json:"title" bson:"title"`
	Author        string             `json:"author" bson:"author"`
	Description   string             `json:"description,omitempty" bson:"description,omitempty"`
	CoverImage    string             `json:"coverImage" bson:"cover_image"`
	Genre         string             `json:"genre" bson:"genre"`
	PublishedYear int                `json:"publishedYear,omitempty" bson:"published_year,omitempty"`
	AverageRating float64            `json:"averageRating" bson:"average_rating"` // Производное поле, пишется только агрегатором
	RatingsCount  int                `json:"ratingsCount" bson:"ratings_count"`   // Производное поле, пишется только агрегатором
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updated_at"`
}

type User struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name        string               `json:"name" bson:"name"`
	Email       string               `json:"email" bson:"email"`
	Password    string               `json:"-" bson:"password"` // bcrypt-хэш, никогда не сериализуется в ответы
	ReadingList []primitive.ObjectID `json:"readingList" bson:"reading_list"`
}

// UserProfile - публичные поля пользователя для отдачи в ответах
// и при резолве авторов отзывов/ответов
type UserProfile struct {
	ID    primitive.ObjectID `json:"id" bson:"_id"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email" bson:"email"`
}

// Reply - ответ на текст отзыва, листовая сущность без дальнейшей вложенности
type Reply struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"userId" bson:"user_id"`
	User      *UserProfile       `json:"user,omitempty" bson:"-"` // Заполняется при чтении, в MongoDB не хранится
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// ReviewText - один текстовый блок отзыва; на него можно отвечать
// независимо от оценки родительского отзыва
type ReviewText struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	Replies   []Reply            `json:"replies" bson:"replies"`
}

// Review - отзыв пользователя на книгу: одна оценка (1-5), фиксируемая
// при создании, плюс упорядоченный список текстов с ответами
type Review struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BookID      primitive.ObjectID `json:"bookId" bson:"book_id"`
	UserID      primitive.ObjectID `json:"userId" bson:"user_id"`
	User        *UserProfile       `json:"user,omitempty" bson:"-"` // Заполняется при чтении
	Rating      int                `json:"rating" bson:"rating"`
	ReviewTexts []ReviewText       `json:"reviewTexts" bson:"review_texts"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}
