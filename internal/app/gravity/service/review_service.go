package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/infrastructure"
	"gravity/internal/app/gravity/repository"
	"gravity/pkg/logger"
	"gravity/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewService обрабатывает бизнес-логику отзывов и ответов.
// Порядок побочных эффектов фиксирован: запись в MongoDB, затем пересчёт
// рейтинга книги, затем realtime-рассылка. Сбой записи не вызывает ни
// пересчёта, ни рассылки
type ReviewService struct {
	reviewRepo    repository.ReviewRepository
	bookRepo      repository.BookRepository
	userRepo      repository.UserRepository
	broadcaster   infrastructure.EventBroadcaster
	kafkaProducer infrastructure.MessagePublisher
	cache         BookCache
}

// NewReviewService создает новый сервис отзывов с внедрением зависимостей
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	bookRepo repository.BookRepository,
	userRepo repository.UserRepository,
	broadcaster infrastructure.EventBroadcaster,
	kafkaProducer infrastructure.MessagePublisher,
	cache BookCache,
) *ReviewService {
	return &ReviewService{
		reviewRepo:    reviewRepo,
		bookRepo:      bookRepo,
		userRepo:      userRepo,
		broadcaster:   broadcaster,
		kafkaProducer: kafkaProducer,
		cache:         cache,
	}
}

// CreateReview создает новый отзыв с одним начальным текстом.
// 1. Проверяет существование книги
// 2. Сохраняет отзыв (уникальность пары книга-пользователь следит индекс)
// 3. Пересчитывает рейтинг книги
// 4. Рассылает событие newReview и публикует REVIEW_CREATED в Kafka
func (s *ReviewService) CreateReview(ctx context.Context, bookID, userID primitive.ObjectID, req *entity.CreateReviewRequest) (*entity.Review, error) {
	if _, err := s.bookRepo.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to check book: %w", err)
	}

	now := time.Now()
	review := &entity.Review{
		BookID: bookID,
		UserID: userID,
		Rating: req.Rating,
		ReviewTexts: []entity.ReviewText{
			{
				ID:        primitive.NewObjectID(),
				Text:      req.Text,
				CreatedAt: now,
				Replies:   []entity.Reply{},
			},
		},
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, ErrDuplicateReview
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	metrics.ReviewsCreated.Inc()
	metrics.ReviewsRating.Observe(float64(review.Rating))

	// Запись прошла: рассылка не должна опередить пересчёт, иначе событие
	// объявит устаревший агрегат. Сбой пересчёта подхватит фоновая сверка
	if err := s.RecomputeAggregate(ctx, bookID, "create"); err != nil {
		logger.Error().Err(err).Str("book_id", bookID.Hex()).Msg("Failed to recompute aggregate after create")
	}

	s.attachAuthors(ctx, []*entity.Review{review})

	s.broadcaster.Emit(entity.EventNewReview, review)

	s.publishReviewEvent(ctx, entity.ReviewEvent{
		EventType: entity.ReviewEventCreated,
		ReviewID:  review.ID.Hex(),
		BookID:    review.BookID.Hex(),
		UserID:    review.UserID.Hex(),
		Rating:    review.Rating,
		Timestamp: time.Now(),
	})

	return review, nil
}

// GetReviewsByBook получает все отзывы книги, новые первыми,
// с заполненными профилями авторов отзывов и ответов. Без побочных эффектов
func (s *ReviewService) GetReviewsByBook(ctx context.Context, bookID primitive.ObjectID) ([]entity.Review, error) {
	reviews, err := s.reviewRepo.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	refs := make([]*entity.Review, len(reviews))
	for i := range reviews {
		refs[i] = &reviews[i]
	}
	s.attachAuthors(ctx, refs)

	return reviews, nil
}

// AddReply добавляет ответ к указанному тексту отзыва и рассылает
// событие newReply. Рейтинг книги не трогает - ответы оценки не несут
func (s *ReviewService) AddReply(ctx context.Context, reviewID, reviewTextID, userID primitive.ObjectID, req *entity.AddReplyRequest) (*entity.Reply, error) {
	reply := &entity.Reply{
		UserID: userID,
		Text:   req.Text,
	}

	if err := s.reviewRepo.AppendReply(ctx, reviewID, reviewTextID, reply); err != nil {
		switch {
		case errors.Is(err, repository.ErrReviewNotFound):
			return nil, ErrReviewNotFound
		case errors.Is(err, repository.ErrReviewTextNotFound):
			return nil, ErrReviewTextNotFound
		}
		return nil, fmt.Errorf("failed to append reply: %w", err)
	}

	metrics.RepliesCreated.Inc()

	if profiles, err := s.userRepo.GetProfiles(ctx, []primitive.ObjectID{userID}); err == nil {
		if profile, ok := profiles[userID]; ok {
			reply.User = &profile
		}
	}

	s.broadcaster.Emit(entity.EventNewReply, entity.NewReplyPayload{
		ReviewID:     reviewID.Hex(),
		ReviewTextID: reviewTextID.Hex(),
		Reply:        *reply,
	})

	return reply, nil
}

// DeleteReview удаляет отзыв вместе со всеми текстами и ответами.
// Удалить отзыв может только его автор - строгое равенство идентификаторов,
// модераторского обхода нет
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, userID primitive.ObjectID) error {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to get review: %w", err)
	}

	if review.UserID != userID {
		return ErrForbidden
	}

	if err := s.reviewRepo.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to delete review: %w", err)
	}

	metrics.ReviewsDeleted.Inc()

	if err := s.RecomputeAggregate(ctx, review.BookID, "delete"); err != nil {
		logger.Error().Err(err).Str("book_id", review.BookID.Hex()).Msg("Failed to recompute aggregate after delete")
	}

	s.broadcaster.Emit(entity.EventDeletedReview, entity.DeletedReviewPayload{
		ReviewID: reviewID.Hex(),
	})

	s.publishReviewEvent(ctx, entity.ReviewEvent{
		EventType: entity.ReviewEventDeleted,
		ReviewID:  reviewID.Hex(),
		BookID:    review.BookID.Hex(),
		UserID:    review.UserID.Hex(),
		Rating:    review.Rating,
		Timestamp: time.Now(),
	})

	return nil
}

// RecomputeAggregate пересчитывает агрегат рейтинга книги по полному набору
// её отзывов и атомарно записывает пару average_rating/ratings_count.
// Всегда считает от текущего состояния, а не инкрементально - гонки
// конкурентных создании/удалений сходятся к корректному значению
// последним пересчётом
func (s *ReviewService) RecomputeAggregate(ctx context.Context, bookID primitive.ObjectID, trigger string) error {
	agg, err := s.reviewRepo.AggregateByBook(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	if err := s.bookRepo.UpdateAggregate(ctx, bookID, agg); err != nil {
		return fmt.Errorf("failed to write book aggregate: %w", err)
	}

	// Карточка книги в кеше теперь устарела
	if s.cache != nil {
		if err := s.cache.DeleteBook(ctx, bookID); err != nil {
			logger.Warn().Err(err).Str("book_id", bookID.Hex()).Msg("Failed to invalidate book cache")
		}
	}

	metrics.AggregateRecomputes.WithLabelValues(trigger).Inc()

	return nil
}

// attachAuthors заполняет публичные профили авторов отзывов и ответов
// одним батч-запросом. Ошибка резолва не ломает чтение - профили просто
// останутся пустыми
func (s *ReviewService) attachAuthors(ctx context.Context, reviews []*entity.Review) {
	idSet := make(map[primitive.ObjectID]struct{})
	for _, review := range reviews {
		idSet[review.UserID] = struct{}{}
		for _, rt := range review.ReviewTexts {
			for _, reply := range rt.Replies {
				idSet[reply.UserID] = struct{}{}
			}
		}
	}

	ids := make([]primitive.ObjectID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	profiles, err := s.userRepo.GetProfiles(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to resolve review authors")
		return
	}

	for _, review := range reviews {
		if profile, ok := profiles[review.UserID]; ok {
			p := profile
			review.User = &p
		}
		for i := range review.ReviewTexts {
			for j := range review.ReviewTexts[i].Replies {
				reply := &review.ReviewTexts[i].Replies[j]
				if profile, ok := profiles[reply.UserID]; ok {
					p := profile
					reply.User = &p
				}
			}
		}
	}
}

// publishReviewEvent отправляет событие об отзыве в Kafka.
// Доставка best-effort: отзыв уже записан, проблемы с Kafka не критичны
func (s *ReviewService) publishReviewEvent(ctx context.Context, event entity.ReviewEvent) {
	eventData, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal review event")
		return
	}

	// Ключ = ReviewID для партиционирования
	if err := s.kafkaProducer.PublishMessage(ctx, event.ReviewID, eventData); err != nil {
		logger.Warn().Err(err).Str("event_type", event.EventType).Msg("Failed to publish review event")
	}
}
