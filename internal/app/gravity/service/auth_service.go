package service

import (
	"context"
	"errors"
	"fmt"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/repository"
	"gravity/internal/app/gravity/util"
	"gravity/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeResult - текущий пользователь с заполненным списком чтения
type MeResult struct {
	User        entity.UserProfile `json:"user"`
	ReadingList []entity.Book      `json:"readingList"`
}

// AuthService обрабатывает регистрацию и вход.
// Пароль хранится только как bcrypt-хэш
type AuthService struct {
	userRepo repository.UserRepository
	bookRepo repository.BookRepository
	tokens   TokenIssuer
}

func NewAuthService(userRepo repository.UserRepository, bookRepo repository.BookRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		bookRepo: bookRepo,
		tokens:   tokens,
	}
}

// Register создает нового пользователя и сразу выдает токен
func (s *AuthService) Register(ctx context.Context, req *entity.RegisterRequest) (*entity.AuthResponse, error) {
	hashedPassword, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.AuthRegistrations.Inc()

	return &entity.AuthResponse{
		Token: token,
		User: entity.UserProfile{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	}, nil
}

// Login проверяет пароль и выдает токен. Несуществующий email и неверный
// пароль неразличимы для вызывающего
func (s *AuthService) Login(ctx context.Context, req *entity.LoginRequest) (*entity.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			metrics.AuthLogins.WithLabelValues("failed").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !util.CheckPassword(req.Password, user.Password) {
		metrics.AuthLogins.WithLabelValues("failed").Inc()
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.AuthLogins.WithLabelValues("success").Inc()

	return &entity.AuthResponse{
		Token: token,
		User: entity.UserProfile{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	}, nil
}

// GetMe возвращает профиль текущего пользователя со списком чтения
func (s *AuthService) GetMe(ctx context.Context, userID primitive.ObjectID) (*MeResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	books, err := s.bookRepo.GetByIDs(ctx, user.ReadingList)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reading list: %w", err)
	}

	return &MeResult{
		User: entity.UserProfile{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
		ReadingList: books,
	}, nil
}
