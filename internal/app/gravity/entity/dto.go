package entity

// RegisterRequest - запрос на регистрацию пользователя
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest - запрос на вход
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateBookRequest - запрос на добавление книги в каталог
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required,max=100"`
	Author        string `json:"author" validate:"required,max=50"`
	Description   string `json:"description" validate:"omitempty,max=1000"`
	CoverImage    string `json:"coverImage" validate:"omitempty,max=500"`
	Genre         string `json:"genre" validate:"required"`
	PublishedYear int    `json:"publishedYear" validate:"omitempty,min=1000"`
}

// CreateReviewRequest - запрос на создание отзыва
type CreateReviewRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text" validate:"required,min=1,max=1000"`
}

// AddReplyRequest - запрос на добавление ответа к тексту отзыва
type AddReplyRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse - ответ на регистрацию/вход
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// BookListResponse - ответ со списком книг (с пагинацией)
type BookListResponse struct {
	Books []Book `json:"books"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// ReviewListResponse - ответ со списком отзывов
type ReviewListResponse struct {
	Reviews []Review `json:"reviews"`
	Total   int      `json:"total"`
}
