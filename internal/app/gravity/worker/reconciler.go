package worker

import (
	"context"

	"gravity/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AggregateRecomputer пересчитывает агрегат рейтинга одной книги
type AggregateRecomputer interface {
	RecomputeAggregate(ctx context.Context, bookID primitive.ObjectID, trigger string) error
}

// BookLister отдает ID всех книг каталога
type BookLister interface {
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// Reconciler - фоновая сверка рейтингов: по расписанию пересчитывает
// агрегат каждой книги от полного набора отзывов. Страхует от дрейфа
// после гонок конкурентных созданий/удалений и после сбоев пересчёта
// в момент записи
type Reconciler struct {
	cron    *cron.Cron
	books   BookLister
	reviews AggregateRecomputer
}

func NewReconciler(books BookLister, reviews AggregateRecomputer) *Reconciler {
	return &Reconciler{
		cron:    cron.New(),
		books:   books,
		reviews: reviews,
	}
}

// Start регистрирует задачу сверки и запускает планировщик.
// Первая сверка выполняется сразу, не дожидаясь расписания
func (r *Reconciler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting aggregate reconciler")

	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("Aggregate reconciliation failed")
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()

	if err := r.RunOnce(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial aggregate reconciliation failed")
	}

	return nil
}

// RunOnce пересчитывает агрегаты всех книг. Ошибка по одной книге
// не прерывает сверку остальных
func (r *Reconciler) RunOnce(ctx context.Context) error {
	ids, err := r.books.ListIDs(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		if err := r.reviews.RecomputeAggregate(ctx, id, "reconciler"); err != nil {
			failed++
			logger.Warn().Err(err).Str("book_id", id.Hex()).Msg("Failed to reconcile book aggregate")
		}
	}

	logger.Info().Int("books", len(ids)).Int("failed", failed).Msg("Aggregate reconciliation completed")

	return nil
}

// Stop останавливает планировщик, дожидаясь завершения текущей задачи
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Aggregate reconciler stopped")
}
