//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/internal/app/gravity/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const BaseURL = "http://localhost:8080"

func registerUser(t *testing.T, client *http.Client) (string, entity.UserProfile) {
	t.Helper()

	email := "e2e-" + primitive.NewObjectID().Hex() + "@example.com"
	reqBody := entity.RegisterRequest{Name: "E2E User", Email: email, Password: "password123"}
	body, _ := json.Marshal(reqBody)

	resp, err := client.Post(BaseURL+"/api/v1/auth/register", "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auth entity.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	require.NotEmpty(t, auth.Token)

	return auth.Token, auth.User
}

func authRequest(t *testing.T, client *http.Client, method, url, token string, payload interface{}) *http.Response {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func TestFullReviewFlow(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	token, _ := registerUser(t, client)

	// Книга
	createBook := entity.CreateBookRequest{
		Title:         "E2E Book " + primitive.NewObjectID().Hex(),
		Author:        "Test Author",
		Genre:         "Fantasy",
		PublishedYear: 2001,
	}

	resp := authRequest(t, client, http.MethodPost, BaseURL+"/api/v1/books", token, createBook)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var book entity.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	resp.Body.Close()

	// Websocket-подписка до создания отзыва
	wsURL := "ws" + strings.TrimPrefix(BaseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Отзыв
	resp = authRequest(t, client, http.MethodPost, BaseURL+"/api/v1/books/"+book.ID.Hex()+"/reviews", token,
		entity.CreateReviewRequest{Rating: 5, Text: "Loved it."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var review entity.Review
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&review))
	resp.Body.Close()

	defer func() {
		resp := authRequest(t, client, http.MethodDelete, BaseURL+"/api/v1/reviews/"+review.ID.Hex(), token, nil)
		resp.Body.Close()
	}()

	// Событие newReview дошло по websocket
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var message realtime.Message
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "newReview", message.Type)

	// Агрегат книги обновился
	resp, err = client.Get(BaseURL + "/api/v1/books/" + book.ID.Hex())
	require.NoError(t, err)
	var updated entity.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, 5.0, updated.AverageRating)
	assert.Equal(t, 1, updated.RatingsCount)

	// Ответ на текст отзыва
	require.NotEmpty(t, review.ReviewTexts)
	replyURL := BaseURL + "/api/v1/reviews/" + review.ID.Hex() + "/reviewTexts/" + review.ReviewTexts[0].ID.Hex() + "/replies"
	resp = authRequest(t, client, http.MethodPost, replyURL, token, entity.AddReplyRequest{Text: "Same here."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Отзывы книги с вложенным ответом
	resp, err = client.Get(BaseURL + "/api/v1/books/" + book.ID.Hex() + "/reviews")
	require.NoError(t, err)
	var listResp entity.ReviewListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()

	require.Equal(t, 1, listResp.Total)
	require.Len(t, listResp.Reviews[0].ReviewTexts[0].Replies, 1)
	assert.Equal(t, "Same here.", listResp.Reviews[0].ReviewTexts[0].Replies[0].Text)
}

func TestReadingListFlow(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	token, _ := registerUser(t, client)

	createBook := entity.CreateBookRequest{
		Title:  "Reading List Book " + primitive.NewObjectID().Hex(),
		Author: "Test Author",
		Genre:  "History",
	}

	resp := authRequest(t, client, http.MethodPost, BaseURL+"/api/v1/books", token, createBook)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var book entity.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	resp.Body.Close()

	// Добавление в список чтения
	resp = authRequest(t, client, http.MethodPost, BaseURL+"/api/v1/books/"+book.ID.Hex()+"/reading-list", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Список виден в профиле
	resp = authRequest(t, client, http.MethodGet, BaseURL+"/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		ReadingList []entity.Book `json:"readingList"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	require.Len(t, me.ReadingList, 1)
	assert.Equal(t, book.ID, me.ReadingList[0].ID)

	// Удаление из списка чтения
	resp = authRequest(t, client, http.MethodDelete, BaseURL+"/api/v1/books/"+book.ID.Hex()+"/reading-list", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAnonymousCannotReview(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}

	body, _ := json.Marshal(entity.CreateReviewRequest{Rating: 5, Text: "No auth"})
	resp, err := client.Post(BaseURL+"/api/v1/books/"+primitive.NewObjectID().Hex()+"/reviews", "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
