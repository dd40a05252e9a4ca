package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rental-chat/config"
	"rental-chat/engine"
	"rental-chat/models"
)

type stubGateway struct {
	res models.NLUResult
	err error
}

func (g *stubGateway) Detect(ctx context.Context, utterance string) (models.NLUResult, error) {
	return g.res, g.err
}

func testAssistant() *config.Assistant {
	return &config.Assistant{
		Bot:         models.Author{ID: "bot", DisplayName: "Mr. Go"},
		User:        models.Author{ID: "user", DisplayName: "User"},
		Greeting:    "How might I be of assistance?",
		Fallback:    "Sorry, I didn't understand that.",
		ReadyMarker: "vehicle will be ready",
		QuickReplies: []models.QuickReply{
			{Label: "Reserve a vehicle", Value: "Reserve a vehicle"},
			{Label: "Return a vehicle", Value: "Return a vehicle"},
			{Label: "Get travel recommendations", Value: "Get travel recommendations"},
			{Label: "Explore Promotions", Value: "Explore Promotions"},
			{Label: "Others", Value: "Others"},
		},
		Catalog: []models.OptionCard{
			{ID: "1", DisplayName: "Tesla Model S", SelectValue: "Tesla Model S"},
			{ID: "2", DisplayName: "BMW X5", SelectValue: "BMW X5"},
		},
	}
}

func newTestRouter(gw engine.Gateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := NewSessionManager(testAssistant(),
		func(string) engine.Gateway { return gw },
		engine.ActionFunc(func(models.DomainIntent) {}))
	h := NewChatHandler(sessions)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/sessions", h.CreateSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.GET("/sessions/:id/messages", h.GetMessages)
	api.POST("/sessions/:id/messages", h.SendMessage)
	api.POST("/sessions/:id/selections", h.Select)
	return r
}

func createSession(t *testing.T, r *gin.Engine) sessionResponse {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", w.Code, w.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	r := newTestRouter(&stubGateway{})
	resp := createSession(t, r)
	if len(resp.Messages) != 1 {
		t.Fatalf("expected greeting only, got %d messages", len(resp.Messages))
	}
	if len(resp.Messages[0].QuickReplies) != 5 {
		t.Fatalf("expected 5 quick replies, got %d", len(resp.Messages[0].QuickReplies))
	}
	if resp.Messages[0].Author.ID != "bot" {
		t.Fatalf("greeting not from bot: %+v", resp.Messages[0].Author)
	}
}

func TestSendMessageTurn(t *testing.T) {
	r := newTestRouter(&stubGateway{res: models.NLUResult{FulfillmentText: "Which city are you in?"}})
	sess := createSession(t, r)

	w := postJSON(r, fmt.Sprintf("/api/sessions/%s/messages", sess.ID),
		models.SendMessageRequest{Content: "Reserve a vehicle"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var turn models.TurnResponse
	if err := json.Unmarshal(w.Body.Bytes(), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.UserMessage.Text != "Reserve a vehicle" {
		t.Fatalf("user message = %q", turn.UserMessage.Text)
	}
	if len(turn.BotMessages) != 1 || turn.BotMessages[0].Text != "Which city are you in?" {
		t.Fatalf("bot messages = %+v", turn.BotMessages)
	}
}

func TestSendMessageGatewayFailure(t *testing.T) {
	r := newTestRouter(&stubGateway{err: errors.New("network down")})
	sess := createSession(t, r)

	w := postJSON(r, fmt.Sprintf("/api/sessions/%s/messages", sess.ID),
		models.SendMessageRequest{Content: "Reserve a vehicle"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	// The user message stays in history; no bot message was appended.
	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/sessions/%s/messages", sess.ID), nil))
	var msgs []models.Message
	if err := json.Unmarshal(get.Body.Bytes(), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected greeting + user message, got %d", len(msgs))
	}
	if msgs[1].Text != "Reserve a vehicle" || msgs[1].Author.ID != "user" {
		t.Fatalf("user message not preserved: %+v", msgs[1])
	}
}

func TestSelectionRunsNormalTurn(t *testing.T) {
	r := newTestRouter(&stubGateway{res: models.NLUResult{FulfillmentText: "Noted."}})
	sess := createSession(t, r)

	w := postJSON(r, fmt.Sprintf("/api/sessions/%s/selections", sess.ID),
		models.SelectionRequest{Value: "BMW X5"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var turn models.TurnResponse
	if err := json.Unmarshal(w.Body.Bytes(), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.UserMessage.Text != "BMW X5" || turn.UserMessage.Author.ID != "user" {
		t.Fatalf("selection not recorded as user input: %+v", turn.UserMessage)
	}
}

func TestDeleteSession(t *testing.T) {
	r := newTestRouter(&stubGateway{})
	sess := createSession(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/api/sessions/%s", sess.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/sessions/%s/messages", sess.ID), nil))
	if get.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", get.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	r := newTestRouter(&stubGateway{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/sessions/%s/messages", uuid.New()), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	bad := httptest.NewRecorder()
	r.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid/messages", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", bad.Code)
	}
}
