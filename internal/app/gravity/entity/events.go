package entity

import "time"

// Имена realtime событий. Клиенты, подключившиеся после отправки события,
// его не получат - актуальное состояние всегда доступно через REST
const (
	EventNewReview     = "newReview"
	EventNewReply      = "newReply"
	EventDeletedReview = "deletedReview"
)

// NewReplyPayload - полезная нагрузка события newReply
type NewReplyPayload struct {
	ReviewID     string `json:"reviewId"`
	ReviewTextID string `json:"reviewTextId"`
	Reply        Reply  `json:"reply"`
}

// DeletedReviewPayload - полезная нагрузка события deletedReview
type DeletedReviewPayload struct {
	ReviewID string `json:"reviewId"`
}

// ReviewEvent - событие для Kafka (REVIEW_CREATED, REVIEW_DELETED),
// потребляется внешними сервисами аналитики
type ReviewEvent struct {
	EventType string    `json:"event_type"`
	ReviewID  string    `json:"review_id"`
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ReviewEventCreated = "REVIEW_CREATED"
	ReviewEventDeleted = "REVIEW_DELETED"
)
