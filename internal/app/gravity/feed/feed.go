package feed

import (
	"errors"
	"sync"

	"gravity/internal/app/gravity/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrStale сигнализирует, что событие ссылается на неизвестную локально
// сущность: снимок отстал от потока, вызывающему нужно перечитать
// состояние через REST
var ErrStale = errors.New("event references unknown entity, snapshot refresh required")

// Feed - локальная модель чтения отзывов одной книги: снимок из REST
// плюс входящие realtime события. Все сущности индексированы по ID,
// поэтому применение события не требует обхода дерева, а повторная
// доставка одного события - безопасный no-op
type Feed struct {
	mu      sync.RWMutex
	order   []primitive.ObjectID // Порядок показа, новые первыми
	reviews map[primitive.ObjectID]*entity.Review
	texts   map[primitive.ObjectID]primitive.ObjectID // ID текста -> ID отзыва
}

func New() *Feed {
	return &Feed{
		order:   []primitive.ObjectID{},
		reviews: make(map[primitive.ObjectID]*entity.Review),
		texts:   make(map[primitive.ObjectID]primitive.ObjectID),
	}
}

// Load замещает состояние снимком из GetReviewsByBook.
// Снимок приходит уже отсортированным, новые первыми
func (f *Feed) Load(reviews []entity.Review) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.order = f.order[:0]
	f.reviews = make(map[primitive.ObjectID]*entity.Review, len(reviews))
	f.texts = make(map[primitive.ObjectID]primitive.ObjectID)

	for i := range reviews {
		review := cloneReview(reviews[i])
		if _, ok := f.reviews[review.ID]; ok {
			continue
		}
		f.insert(&review)
	}
}

// ApplyNewReview вставляет отзыв в начало списка.
// Повторная доставка того же отзыва - no-op, возвращает false
func (f *Feed) ApplyNewReview(review entity.Review) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.reviews[review.ID]; ok {
		return false
	}

	review = cloneReview(review)
	f.order = append([]primitive.ObjectID{review.ID}, f.order...)
	f.reviews[review.ID] = &review
	for _, rt := range review.ReviewTexts {
		f.texts[rt.ID] = review.ID
	}

	return true
}

// ApplyNewReply добавляет ответ к нужному тексту отзыва.
// Неизвестный отзыв или текст - ErrStale; уже виденный ответ - no-op
func (f *Feed) ApplyNewReply(payload entity.NewReplyPayload) error {
	reviewID, err := primitive.ObjectIDFromHex(payload.ReviewID)
	if err != nil {
		return ErrStale
	}
	reviewTextID, err := primitive.ObjectIDFromHex(payload.ReviewTextID)
	if err != nil {
		return ErrStale
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.texts[reviewTextID]
	if !ok || owner != reviewID {
		return ErrStale
	}

	review, ok := f.reviews[reviewID]
	if !ok {
		return ErrStale
	}

	for i := range review.ReviewTexts {
		rt := &review.ReviewTexts[i]
		if rt.ID != reviewTextID {
			continue
		}
		for _, existing := range rt.Replies {
			if existing.ID == payload.Reply.ID {
				return nil
			}
		}
		rt.Replies = append(rt.Replies, payload.Reply)
		return nil
	}

	return ErrStale
}

// ApplyDeletedReview убирает отзыв из списка; отсутствующий - no-op
func (f *Feed) ApplyDeletedReview(payload entity.DeletedReviewPayload) bool {
	reviewID, err := primitive.ObjectIDFromHex(payload.ReviewID)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	review, ok := f.reviews[reviewID]
	if !ok {
		return false
	}

	for _, rt := range review.ReviewTexts {
		delete(f.texts, rt.ID)
	}
	delete(f.reviews, reviewID)

	for i, id := range f.order {
		if id == reviewID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}

	return true
}

// Reviews возвращает отзывы в порядке показа, новые первыми
func (f *Feed) Reviews() []entity.Review {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]entity.Review, 0, len(f.order))
	for _, id := range f.order {
		if review, ok := f.reviews[id]; ok {
			result = append(result, *review)
		}
	}

	return result
}

// Len возвращает количество отзывов в модели
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// cloneReview отвязывает вложенные срезы от памяти вызывающего:
// ApplyNewReply дописывает ответы в собственные массивы модели,
// не задевая срезы, оставшиеся у источника снимка
func cloneReview(r entity.Review) entity.Review {
	texts := make([]entity.ReviewText, len(r.ReviewTexts))
	copy(texts, r.ReviewTexts)
	for i := range texts {
		replies := make([]entity.Reply, len(texts[i].Replies))
		copy(replies, texts[i].Replies)
		texts[i].Replies = replies
	}
	r.ReviewTexts = texts
	return r
}

// insert добавляет отзыв в конец порядка (для загрузки снимка)
func (f *Feed) insert(review *entity.Review) {
	f.order = append(f.order, review.ID)
	f.reviews[review.ID] = review
	for _, rt := range review.ReviewTexts {
		f.texts[rt.ID] = review.ID
	}
}
