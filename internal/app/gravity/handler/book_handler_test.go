package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/repository"
	"gravity/internal/app/gravity/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockBookService struct {
	mock.Mock
}

func (m *MockBookService) CreateBook(ctx context.Context, req *entity.CreateBookRequest) (*entity.Book, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Book), args.Error(1)
}

func (m *MockBookService) GetBook(ctx context.Context, id primitive.ObjectID) (*entity.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Book), args.Error(1)
}

func (m *MockBookService) ListBooks(ctx context.Context, filter repository.BookListFilter) ([]entity.Book, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Book), args.Get(1).(int64), args.Error(2)
}

func (m *MockBookService) AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*service.ReadingListResult, error) {
	args := m.Called(ctx, userID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReadingListResult), args.Error(1)
}

func (m *MockBookService) RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*service.ReadingListResult, error) {
	args := m.Called(ctx, userID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReadingListResult), args.Error(1)
}

func TestCreateBookHandler_Success(t *testing.T) {
	router := setupTestRouter()

	book := &entity.Book{ID: primitive.NewObjectID(), Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}

	mockService := new(MockBookService)
	mockService.On("CreateBook", mock.Anything, mock.AnythingOfType("*entity.CreateBookRequest")).Return(book, nil)

	handler := NewBookHandler(mockService)
	router.POST("/books", handler.CreateBook)

	body, _ := json.Marshal(entity.CreateBookRequest{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", PublishedYear: 1965})
	req, _ := http.NewRequest(http.MethodPost, "/books", bytes.NewBuffer(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateBookHandler_InvalidGenre(t *testing.T) {
	router := setupTestRouter()

	mockService := new(MockBookService)
	mockService.On("CreateBook", mock.Anything, mock.Anything).Return(nil, service.ErrInvalidGenre)

	handler := NewBookHandler(mockService)
	router.POST("/books", handler.CreateBook)

	body, _ := json.Marshal(entity.CreateBookRequest{Title: "Dune", Author: "Frank Herbert", Genre: "Unknown"})
	req, _ := http.NewRequest(http.MethodPost, "/books", bytes.NewBuffer(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBookHandler_Success(t *testing.T) {
	router := setupTestRouter()
	bookID := primitive.NewObjectID()

	book := &entity.Book{ID: bookID, Title: "Dune", AverageRating: 4.5, RatingsCount: 2}

	mockService := new(MockBookService)
	mockService.On("GetBook", mock.Anything, bookID).Return(book, nil)

	handler := NewBookHandler(mockService)
	router.GET("/books/:book_id", handler.GetBook)

	req, _ := http.NewRequest(http.MethodGet, "/books/"+bookID.Hex(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got entity.Book
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 4.5, got.AverageRating)
	assert.Equal(t, 2, got.RatingsCount)
}

func TestGetBookHandler_NotFound(t *testing.T) {
	router := setupTestRouter()
	bookID := primitive.NewObjectID()

	mockService := new(MockBookService)
	mockService.On("GetBook", mock.Anything, bookID).Return(nil, service.ErrBookNotFound)

	handler := NewBookHandler(mockService)
	router.GET("/books/:book_id", handler.GetBook)

	req, _ := http.NewRequest(http.MethodGet, "/books/"+bookID.Hex(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBooksHandler_DefaultPagination(t *testing.T) {
	router := setupTestRouter()

	books := []entity.Book{{ID: primitive.NewObjectID(), Title: "Dune"}}

	mockService := new(MockBookService)
	mockService.On("ListBooks", mock.Anything, repository.BookListFilter{Page: 1, Limit: 20}).Return(books, int64(1), nil)

	handler := NewBookHandler(mockService)
	router.GET("/books", handler.ListBooks)

	req, _ := http.NewRequest(http.MethodGet, "/books", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp entity.BookListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
}

func TestListBooksHandler_GenreFilter(t *testing.T) {
	router := setupTestRouter()

	mockService := new(MockBookService)
	mockService.On("ListBooks", mock.Anything, repository.BookListFilter{Genre: "Fantasy", Sort: "-averageRating", Page: 2, Limit: 10}).
		Return([]entity.Book{}, int64(0), nil)

	handler := NewBookHandler(mockService)
	router.GET("/books", handler.ListBooks)

	req, _ := http.NewRequest(http.MethodGet, "/books?genre=Fantasy&sort=-averageRating&page=2&limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAddToReadingListHandler_Success(t *testing.T) {
	router := setupTestRouter()
	userID := primitive.NewObjectID()
	bookID := primitive.NewObjectID()

	result := &service.ReadingListResult{
		User:        entity.UserProfile{ID: userID, Name: "Reader"},
		ReadingList: []entity.Book{{ID: bookID, Title: "Dune"}},
	}

	mockService := new(MockBookService)
	mockService.On("AddToReadingList", mock.Anything, userID, bookID).Return(result, nil)

	handler := NewBookHandler(mockService)
	router.POST("/books/:book_id/reading-list", setUser(userID), handler.AddToReadingList)

	req, _ := http.NewRequest(http.MethodPost, "/books/"+bookID.Hex()+"/reading-list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dune")
}

func TestRemoveFromReadingListHandler_Success(t *testing.T) {
	router := setupTestRouter()
	userID := primitive.NewObjectID()
	bookID := primitive.NewObjectID()

	result := &service.ReadingListResult{
		User:        entity.UserProfile{ID: userID, Name: "Reader"},
		ReadingList: []entity.Book{},
	}

	mockService := new(MockBookService)
	mockService.On("RemoveFromReadingList", mock.Anything, userID, bookID).Return(result, nil)

	handler := NewBookHandler(mockService)
	router.DELETE("/books/:book_id/reading-list", setUser(userID), handler.RemoveFromReadingList)

	req, _ := http.NewRequest(http.MethodDelete, "/books/"+bookID.Hex()+"/reading-list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddToReadingListHandler_BookNotFound(t *testing.T) {
	router := setupTestRouter()
	userID := primitive.NewObjectID()
	bookID := primitive.NewObjectID()

	mockService := new(MockBookService)
	mockService.On("AddToReadingList", mock.Anything, userID, bookID).Return(nil, service.ErrBookNotFound)

	handler := NewBookHandler(mockService)
	router.POST("/books/:book_id/reading-list", setUser(userID), handler.AddToReadingList)

	req, _ := http.NewRequest(http.MethodPost, "/books/"+bookID.Hex()+"/reading-list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
