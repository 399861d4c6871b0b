package service

import (
	"context"
	"errors"
	"testing"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/repository"
	"gravity/internal/app/gravity/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newReviewServiceForTest() (*ReviewService, *mocks.MockReviewRepository, *mocks.MockBookRepository, *mocks.MockUserRepository, *mocks.MockEventBroadcaster, *mocks.MockMessagePublisher) {
	reviewRepo := new(mocks.MockReviewRepository)
	bookRepo := new(mocks.MockBookRepository)
	userRepo := new(mocks.MockUserRepository)
	broadcaster := new(mocks.MockEventBroadcaster)
	kafkaProducer := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	svc := NewReviewService(reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer, nil)
	return svc, reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer
}

func TestCreateReview_Success(t *testing.T) {
	svc, reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	req := &entity.CreateReviewRequest{Rating: 5, Text: "Great book!"}

	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.AnythingOfType("*entity.Review")).Return(nil).Run(func(args mock.Arguments) {
		review := args.Get(1).(*entity.Review)
		review.ID = primitive.NewObjectID()
	})
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{AverageRating: 5, RatingsCount: 1}, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, repository.BookAggregate{AverageRating: 5, RatingsCount: 1}).Return(nil)
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(map[primitive.ObjectID]entity.UserProfile{
		userID: {ID: userID, Name: "Reader"},
	}, nil)
	broadcaster.On("Emit", entity.EventNewReview, mock.Anything).Return()
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.CreateReview(ctx, bookID, userID, req)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, userID, result.UserID)
	assert.Equal(t, 5, result.Rating)
	assert.Len(t, result.ReviewTexts, 1)
	assert.Equal(t, "Great book!", result.ReviewTexts[0].Text)
	assert.NotNil(t, result.User)
	broadcaster.AssertCalled(t, "Emit", entity.EventNewReview, mock.Anything)
}

func TestCreateReview_BookNotFound(t *testing.T) {
	svc, _, bookRepo, _, broadcaster, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()

	bookRepo.On("GetByID", ctx, bookID).Return(nil, repository.ErrBookNotFound)

	result, err := svc.CreateReview(ctx, bookID, primitive.NewObjectID(), &entity.CreateReviewRequest{Rating: 4, Text: "Nice"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrBookNotFound)
	broadcaster.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestCreateReview_Duplicate(t *testing.T) {
	svc, reviewRepo, bookRepo, _, broadcaster, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()

	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateReview)

	result, err := svc.CreateReview(ctx, bookID, primitive.NewObjectID(), &entity.CreateReviewRequest{Rating: 4, Text: "Nice"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDuplicateReview)
	broadcaster.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestCreateReview_RepoErrorNoSideEffects(t *testing.T) {
	svc, reviewRepo, bookRepo, _, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()

	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.Anything).Return(errors.New("db error"))

	result, err := svc.CreateReview(ctx, bookID, primitive.NewObjectID(), &entity.CreateReviewRequest{Rating: 3, Text: "Average"})

	assert.Error(t, err)
	assert.Nil(t, result)
	// Сбой записи: ни пересчёта, ни рассылки, ни Kafka
	reviewRepo.AssertNotCalled(t, "AggregateByBook", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	kafkaProducer.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateReview_RecomputeErrorIgnored(t *testing.T) {
	svc, reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entity.Review).ID = primitive.NewObjectID()
	})
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{}, errors.New("aggregation failed"))
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(map[primitive.ObjectID]entity.UserProfile{}, nil)
	broadcaster.On("Emit", entity.EventNewReview, mock.Anything).Return()
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.CreateReview(ctx, bookID, userID, &entity.CreateReviewRequest{Rating: 5, Text: "Great"})

	// Отзыв уже записан - сбой пересчёта не роняет операцию
	assert.NoError(t, err)
	assert.NotNil(t, result)
	broadcaster.AssertCalled(t, "Emit", entity.EventNewReview, mock.Anything)
}

func TestCreateReview_KafkaErrorIgnored(t *testing.T) {
	svc, reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()

	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entity.Review).ID = primitive.NewObjectID()
	})
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{AverageRating: 4, RatingsCount: 1}, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, mock.Anything).Return(nil)
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(map[primitive.ObjectID]entity.UserProfile{}, nil)
	broadcaster.On("Emit", entity.EventNewReview, mock.Anything).Return()
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(errors.New("kafka error"))

	result, err := svc.CreateReview(ctx, bookID, primitive.NewObjectID(), &entity.CreateReviewRequest{Rating: 4, Text: "Good"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
}

func TestGetReviewsByBook_Success(t *testing.T) {
	svc, reviewRepo, _, userRepo, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	author := primitive.NewObjectID()
	reviews := []entity.Review{
		{ID: primitive.NewObjectID(), BookID: bookID, UserID: author, Rating: 5},
		{ID: primitive.NewObjectID(), BookID: bookID, UserID: author, Rating: 4},
	}

	reviewRepo.On("GetByBookID", ctx, bookID).Return(reviews, nil)
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(map[primitive.ObjectID]entity.UserProfile{
		author: {ID: author, Name: "Reader"},
	}, nil)

	result, err := svc.GetReviewsByBook(ctx, bookID)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.NotNil(t, result[0].User)
	assert.Equal(t, "Reader", result[0].User.Name)
}

func TestGetReviewsByBook_ProfileErrorNotFatal(t *testing.T) {
	svc, reviewRepo, _, userRepo, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	reviews := []entity.Review{
		{ID: primitive.NewObjectID(), BookID: bookID, UserID: primitive.NewObjectID(), Rating: 5},
	}

	reviewRepo.On("GetByBookID", ctx, bookID).Return(reviews, nil)
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(nil, errors.New("db error"))

	result, err := svc.GetReviewsByBook(ctx, bookID)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Nil(t, result[0].User)
}

func TestAddReply_Success(t *testing.T) {
	svc, reviewRepo, _, userRepo, broadcaster, _ := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewTextID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	reviewRepo.On("AppendReply", ctx, reviewID, reviewTextID, mock.AnythingOfType("*entity.Reply")).Return(nil).Run(func(args mock.Arguments) {
		reply := args.Get(3).(*entity.Reply)
		reply.ID = primitive.NewObjectID()
	})
	userRepo.On("GetProfiles", ctx, []primitive.ObjectID{userID}).Return(map[primitive.ObjectID]entity.UserProfile{
		userID: {ID: userID, Name: "Reader"},
	}, nil)
	broadcaster.On("Emit", entity.EventNewReply, mock.Anything).Return()

	result, err := svc.AddReply(ctx, reviewID, reviewTextID, userID, &entity.AddReplyRequest{Text: "I agree"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "I agree", result.Text)
	assert.NotNil(t, result.User)

	broadcaster.AssertCalled(t, "Emit", entity.EventNewReply, mock.MatchedBy(func(p entity.NewReplyPayload) bool {
		return p.ReviewID == reviewID.Hex() && p.ReviewTextID == reviewTextID.Hex()
	}))
}

func TestAddReply_ReviewNotFound(t *testing.T) {
	svc, reviewRepo, _, _, broadcaster, _ := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewTextID := primitive.NewObjectID()

	reviewRepo.On("AppendReply", ctx, reviewID, reviewTextID, mock.Anything).Return(repository.ErrReviewNotFound)

	result, err := svc.AddReply(ctx, reviewID, reviewTextID, primitive.NewObjectID(), &entity.AddReplyRequest{Text: "Hello"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrReviewNotFound)
	broadcaster.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestAddReply_ReviewTextNotFound(t *testing.T) {
	svc, reviewRepo, _, _, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewTextID := primitive.NewObjectID()

	reviewRepo.On("AppendReply", ctx, reviewID, reviewTextID, mock.Anything).Return(repository.ErrReviewTextNotFound)

	result, err := svc.AddReply(ctx, reviewID, reviewTextID, primitive.NewObjectID(), &entity.AddReplyRequest{Text: "Hello"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrReviewTextNotFound)
}

func TestCreateReview_RecomputesAggregateBeforeEmit(t *testing.T) {
	svc, reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	req := &entity.CreateReviewRequest{Rating: 4, Text: "Solid read"}

	var calls []string
	bookRepo.On("GetByID", ctx, bookID).Return(&entity.Book{ID: bookID}, nil)
	reviewRepo.On("Create", ctx, mock.AnythingOfType("*entity.Review")).Return(nil)
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{AverageRating: 4, RatingsCount: 1}, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls = append(calls, "updateAggregate")
	})
	userRepo.On("GetProfiles", ctx, mock.Anything).Return(map[primitive.ObjectID]entity.UserProfile{}, nil)
	broadcaster.On("Emit", entity.EventNewReview, mock.Anything).Return().Run(func(mock.Arguments) {
		calls = append(calls, "emit")
	})
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls = append(calls, "publish")
	})

	_, err := svc.CreateReview(ctx, bookID, userID, req)

	assert.NoError(t, err)
	// Рассылка события строго после записи агрегата
	assert.Equal(t, []string{"updateAggregate", "emit", "publish"}, calls)
}

func TestDeleteReview_RecomputesAggregateBeforeEmit(t *testing.T) {
	svc, reviewRepo, bookRepo, _, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	bookID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	review := &entity.Review{ID: reviewID, BookID: bookID, UserID: userID, Rating: 3}

	var calls []string
	reviewRepo.On("GetByID", ctx, reviewID).Return(review, nil)
	reviewRepo.On("Delete", ctx, reviewID).Return(nil)
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{}, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, repository.BookAggregate{}).Return(nil).Run(func(mock.Arguments) {
		calls = append(calls, "updateAggregate")
	})
	broadcaster.On("Emit", entity.EventDeletedReview, mock.Anything).Return().Run(func(mock.Arguments) {
		calls = append(calls, "emit")
	})
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls = append(calls, "publish")
	})

	err := svc.DeleteReview(ctx, reviewID, userID)

	assert.NoError(t, err)
	assert.Equal(t, []string{"updateAggregate", "emit", "publish"}, calls)
}

func TestDeleteReview_Success(t *testing.T) {
	svc, reviewRepo, bookRepo, _, broadcaster, kafkaProducer := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	bookID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	review := &entity.Review{ID: reviewID, BookID: bookID, UserID: userID, Rating: 2}

	reviewRepo.On("GetByID", ctx, reviewID).Return(review, nil)
	reviewRepo.On("Delete", ctx, reviewID).Return(nil)
	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{}, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, repository.BookAggregate{}).Return(nil)
	broadcaster.On("Emit", entity.EventDeletedReview, mock.Anything).Return()
	kafkaProducer.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(nil)

	err := svc.DeleteReview(ctx, reviewID, userID)

	assert.NoError(t, err)
	broadcaster.AssertCalled(t, "Emit", entity.EventDeletedReview, entity.DeletedReviewPayload{ReviewID: reviewID.Hex()})
	bookRepo.AssertCalled(t, "UpdateAggregate", ctx, bookID, repository.BookAggregate{})
}

func TestDeleteReview_NotFound(t *testing.T) {
	svc, reviewRepo, _, _, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()

	reviewRepo.On("GetByID", ctx, reviewID).Return(nil, repository.ErrReviewNotFound)

	err := svc.DeleteReview(ctx, reviewID, primitive.NewObjectID())

	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestDeleteReview_Forbidden(t *testing.T) {
	svc, reviewRepo, _, _, broadcaster, _ := newReviewServiceForTest()

	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	review := &entity.Review{ID: reviewID, UserID: primitive.NewObjectID()}

	reviewRepo.On("GetByID", ctx, reviewID).Return(review, nil)

	err := svc.DeleteReview(ctx, reviewID, primitive.NewObjectID())

	assert.ErrorIs(t, err, ErrForbidden)
	reviewRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestRecomputeAggregate_WritesAggregate(t *testing.T) {
	svc, reviewRepo, bookRepo, _, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	agg := repository.BookAggregate{AverageRating: 4.5, RatingsCount: 2}

	reviewRepo.On("AggregateByBook", ctx, bookID).Return(agg, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, agg).Return(nil)

	err := svc.RecomputeAggregate(ctx, bookID, "reconciler")

	assert.NoError(t, err)
	bookRepo.AssertCalled(t, "UpdateAggregate", ctx, bookID, agg)
}

func TestRecomputeAggregate_AggregationError(t *testing.T) {
	svc, reviewRepo, bookRepo, _, _, _ := newReviewServiceForTest()

	ctx := context.Background()
	bookID := primitive.NewObjectID()

	reviewRepo.On("AggregateByBook", ctx, bookID).Return(repository.BookAggregate{}, errors.New("db error"))

	err := svc.RecomputeAggregate(ctx, bookID, "create")

	assert.Error(t, err)
	bookRepo.AssertNotCalled(t, "UpdateAggregate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecomputeAggregate_InvalidatesCache(t *testing.T) {
	reviewRepo := new(mocks.MockReviewRepository)
	bookRepo := new(mocks.MockBookRepository)
	userRepo := new(mocks.MockUserRepository)
	broadcaster := new(mocks.MockEventBroadcaster)
	kafkaProducer := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	cache := new(mocks.MockBookCache)
	svc := NewReviewService(reviewRepo, bookRepo, userRepo, broadcaster, kafkaProducer, cache)

	ctx := context.Background()
	bookID := primitive.NewObjectID()
	agg := repository.BookAggregate{AverageRating: 3, RatingsCount: 1}

	reviewRepo.On("AggregateByBook", ctx, bookID).Return(agg, nil)
	bookRepo.On("UpdateAggregate", ctx, bookID, agg).Return(nil)
	cache.On("DeleteBook", ctx, bookID).Return(nil)

	err := svc.RecomputeAggregate(ctx, bookID, "create")

	assert.NoError(t, err)
	cache.AssertCalled(t, "DeleteBook", ctx, bookID)
}
