package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/repository"
	"gravity/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingListResult - пользователь с заполненным списком чтения
type ReadingListResult struct {
	User        entity.UserProfile `json:"user"`
	ReadingList []entity.Book      `json:"readingList"`
}

// BookService обрабатывает каталог книг и списки чтения.
// Агрегат рейтинга книги здесь только читается - пишет его ReviewService
type BookService struct {
	bookRepo repository.BookRepository
	userRepo repository.UserRepository
	cache    BookCache
}

func NewBookService(bookRepo repository.BookRepository, userRepo repository.UserRepository, cache BookCache) *BookService {
	return &BookService{
		bookRepo: bookRepo,
		userRepo: userRepo,
		cache:    cache,
	}
}

// CreateBook добавляет книгу в каталог
func (s *BookService) CreateBook(ctx context.Context, req *entity.CreateBookRequest) (*entity.Book, error) {
	if !entity.IsValidGenre(req.Genre) {
		return nil, ErrInvalidGenre
	}
	if req.PublishedYear > time.Now().Year() {
		return nil, ErrInvalidYear
	}

	coverImage := req.CoverImage
	if coverImage == "" {
		coverImage = "default-book-cover.jpg"
	}

	book := &entity.Book{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		CoverImage:    coverImage,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return book, nil
}

// GetBook получает карточку книги, сначала пробуя кеш.
// Ошибки кеша не критичны - идем в MongoDB
func (s *BookService) GetBook(ctx context.Context, id primitive.ObjectID) (*entity.Book, error) {
	if s.cache != nil {
		cached, err := s.cache.GetBook(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("book_id", id.Hex()).Msg("Book cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetBook(ctx, book); err != nil {
			logger.Warn().Err(err).Str("book_id", id.Hex()).Msg("Book cache write failed")
		}
	}

	return book, nil
}

// ListBooks возвращает страницу каталога с общим количеством
func (s *BookService) ListBooks(ctx context.Context, filter repository.BookListFilter) ([]entity.Book, int64, error) {
	books, total, err := s.bookRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}

	return books, total, nil
}

// AddToReadingList добавляет книгу в список чтения пользователя.
// Повторное добавление - no-op
func (s *BookService) AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*ReadingListResult, error) {
	if _, err := s.bookRepo.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to check book: %w", err)
	}

	user, err := s.userRepo.AddToReadingList(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add to reading list: %w", err)
	}

	return s.buildReadingListResult(ctx, user)
}

// RemoveFromReadingList убирает книгу из списка чтения пользователя
func (s *BookService) RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*ReadingListResult, error) {
	user, err := s.userRepo.RemoveFromReadingList(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to remove from reading list: %w", err)
	}

	return s.buildReadingListResult(ctx, user)
}

// buildReadingListResult резолвит книги списка чтения, сохраняя
// порядок добавления
func (s *BookService) buildReadingListResult(ctx context.Context, user *entity.User) (*ReadingListResult, error) {
	books, err := s.bookRepo.GetByIDs(ctx, user.ReadingList)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reading list: %w", err)
	}

	byID := make(map[primitive.ObjectID]entity.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	ordered := make([]entity.Book, 0, len(user.ReadingList))
	for _, id := range user.ReadingList {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		}
	}

	return &ReadingListResult{
		User: entity.UserProfile{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
		ReadingList: ordered,
	}, nil
}
