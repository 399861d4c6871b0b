package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/repository"
	"gravity/internal/app/gravity/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookServiceInterface interface {
	CreateBook(ctx context.Context, req *entity.CreateBookRequest) (*entity.Book, error)
	GetBook(ctx context.Context, id primitive.ObjectID) (*entity.Book, error)
	ListBooks(ctx context.Context, filter repository.BookListFilter) ([]entity.Book, int64, error)
	AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*service.ReadingListResult, error)
	RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*service.ReadingListResult, error)
}

type BookHandler struct {
	bookService BookServiceInterface
	validator   *validator.Validate
}

func NewBookHandler(bookService BookServiceInterface) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		validator:   validator.New(),
	}
}

// CreateBook обрабатывает POST /api/v1/books
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req entity.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	book, err := h.bookService.CreateBook(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGenre) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid genre"})
			return
		}
		if errors.Is(err, service.ErrInvalidYear) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Published year cannot be in the future"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create book"})
		return
	}

	c.JSON(http.StatusCreated, book)
}

// GetBook обрабатывает GET /api/v1/books/:book_id
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, err := primitive.ObjectIDFromHex(c.Param("book_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	book, err := h.bookService.GetBook(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book"})
		return
	}

	c.JSON(http.StatusOK, book)
}

// ListBooks обрабатывает GET /api/v1/books с фильтром по жанру,
// сортировкой и пагинацией
func (h *BookHandler) ListBooks(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	filter := repository.BookListFilter{
		Genre: c.Query("genre"),
		Sort:  c.Query("sort"),
		Page:  page,
		Limit: limit,
	}

	books, total, err := h.bookService.ListBooks(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list books"})
		return
	}

	c.JSON(http.StatusOK, entity.BookListResponse{
		Books: books,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// AddToReadingList обрабатывает POST /api/v1/books/:book_id/reading-list
func (h *BookHandler) AddToReadingList(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookID, err := primitive.ObjectIDFromHex(c.Param("book_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	result, err := h.bookService.AddToReadingList(c.Request.Context(), userID, bookID)
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reading list"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RemoveFromReadingList обрабатывает DELETE /api/v1/books/:book_id/reading-list
func (h *BookHandler) RemoveFromReadingList(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookID, err := primitive.ObjectIDFromHex(c.Param("book_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	result, err := h.bookService.RemoveFromReadingList(c.Request.Context(), userID, bookID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reading list"})
		return
	}

	c.JSON(http.StatusOK, result)
}
