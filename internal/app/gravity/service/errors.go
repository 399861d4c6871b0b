package service

import "errors"

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrBookNotFound       = errors.New("book not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrReviewTextNotFound = errors.New("review text not found")
	ErrForbidden          = errors.New("requester is not the author")
	ErrDuplicateReview    = errors.New("you already reviewed this book")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidGenre       = errors.New("genre is not in the allowed set")
	ErrInvalidYear        = errors.New("published year cannot be in the future")
)
