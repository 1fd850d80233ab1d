package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"findash/internal/ai"
	"findash/internal/app"
	"findash/internal/doccontext"
	"findash/internal/model"
	"findash/internal/platform/sqlite"
	"findash/internal/probe"
	"findash/internal/repository"
	"findash/internal/transport/http/handler"
)

const testSecret = "test-secret"

type stubLLM struct {
	reply string
	err   error
	last  []ai.ChatMessage
}

func (s *stubLLM) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	s.last = messages
	return s.reply, s.err
}

func (s *stubLLM) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	reply, err := s.Complete(ctx, cfg, messages)
	if err != nil {
		return "", err
	}
	for _, part := range strings.SplitAfter(reply, " ") {
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func newTestRouter(t *testing.T, llm *stubLLM, deps ...handler.Dependency) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.NewMemory(context.Background())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))

	conversationRepo := repository.NewConversationRepository(db)
	fileRepo := repository.NewFileRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	lookup := app.NewFileLookup(fileRepo, nil, nil)

	chat := app.NewChatService(app.ChatDeps{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Assembler: doccontext.NewAssembler(nil,
			doccontext.NewStandardStrategy(lookup),
			doccontext.NewDirectStrategy(repository.NewDirectFileStore(db), nil),
		),
		Verifier:  doccontext.NewVerifier(0, nil),
		LLM:       llm,
		Publisher: app.NewInlineMessageWriter(messageRepo),
	}, app.ChatSettings{
		LLM:          ai.ChatConfig{BaseURL: "http://llm.test/v1", APIKey: "sk-test", Model: "m"},
		SystemPrompt: "You are a financial analysis assistant.",
		MaxContext:   10,
	})
	conversations := app.NewConversationService(app.ConversationDeps{
		Conversations: conversationRepo,
		Files:         fileRepo,
		Messages:      messageRepo,
		FileLookup:    lookup,
		MaxUploadSize: 1 << 20,
	})

	return newEngine(zap.NewNop(), testSecret, 1<<20, Handlers{
		Auth:         handler.NewAuthHandler(app.NewAuthService(repository.NewUserRepository(db), testSecret, time.Hour)),
		Chat:         handler.NewChatHandler(chat),
		Conversation: handler.NewConversationHandler(conversations),
		Dashboard:    handler.NewDashboardHandler(conversations),
		Health:       handler.NewHealthHandler("findash", "test", time.Now(), deps...),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadFile(t *testing.T, router http.Handler, conversationID, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+conversationID+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestChatEndpointUsesUploadedFiles(t *testing.T) {
	llm := &stubLLM{reply: "Revenue is up.\n```dashboard\n{\"title\":\"Q3\",\"kpis\":[],\"charts\":[],\"sources\":[{\"name\":\"10-Q.txt\"}]}\n```"}
	router := newTestRouter(t, llm)

	w := uploadFile(t, router, "C1", "10-Q.txt", "Total revenue 4.2B")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "can u analyze this document", "conversation_id": "C1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"dashboard", "reply", "conversation_id", "context"} {
		assert.Contains(t, body, key)
	}

	var res probe.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "C1", res.ConversationID)
	assert.Equal(t, "Revenue is up.", res.Reply)
	assert.True(t, res.HasDashboard())
	assert.Equal(t, 1, res.Context.FileCount)

	var sent strings.Builder
	for _, m := range llm.last {
		sent.WriteString(m.Content)
	}
	assert.Contains(t, sent.String(), "Total revenue 4.2B")
}

func TestChatEndpointWithoutDashboardReturnsNull(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "plain"})

	w := doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "null", string(body["dashboard"]))
	assert.NotEqual(t, `""`, string(body["conversation_id"]))
}

func TestChatEndpointErrors(t *testing.T) {
	llm := &stubLLM{reply: "x"}
	router := newTestRouter(t, llm)

	w := doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40003, decodeEnvelope(t, w).Code)

	llm.err = errors.New("boom")
	w = doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doJSON(t, router, http.MethodPost, "/chat", "garbage", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatStreamEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "one two"})

	w := doJSON(t, router, http.MethodPost, "/chat/stream", "", gin.H{"prompt": "count", "conversation_id": "S1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: chunk\ndata: one \n\n")
	assert.Contains(t, body, "event: chunk\ndata: two\n\n")
	assert.Contains(t, body, "event: done\ndata: {")
	assert.Contains(t, body, `"conversation_id":"S1"`)
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	router := newTestRouter(t, &stubLLM{})

	w := uploadFile(t, router, "C9", "logo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, 41501, decodeEnvelope(t, w).Code)
}

func TestDashboardPageSourcesPanel(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "Done.\n```dashboard\n{\"title\":\"Q3\",\"kpis\":[],\"charts\":[],\"sources\":[{\"name\":\"10-Q.txt\"}]}\n```"})

	w := doJSON(t, router, http.MethodGet, "/dashboard/D1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "build it", "conversation_id": "D1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/dashboard/D1?sources=collapsed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	report, err := probe.CheckPanel(w.Body)
	require.NoError(t, err)
	assert.True(t, report.Collapsed)
	assert.True(t, report.Toggleable())

	w = doJSON(t, router, http.MethodGet, "/dashboard/D1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report, err = probe.CheckPanel(w.Body)
	require.NoError(t, err)
	assert.False(t, report.Collapsed)
}

func TestAuthRegisterLoginAndMe(t *testing.T) {
	router := newTestRouter(t, &stubLLM{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "cfo", "email": "CFO@Example.com", "password": "quarterly-close",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var registered handler.SessionView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &registered))
	assert.NotEmpty(t, registered.Token)
	assert.NotZero(t, registered.User.ID)
	assert.Equal(t, "cfo@example.com", registered.User.Email)

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &raw))
	assert.Len(t, raw["user"], 3)
	assert.NotContains(t, raw["user"], "password_hash")

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "cfo", "email": "other@example.com", "password": "quarterly-close",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 40001, decodeEnvelope(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "cto", "password": "quarterly-close"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "cfo", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, decodeEnvelope(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "cfo", "password": "quarterly-close"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session handler.SessionView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &session))
	assert.Equal(t, registered.User, session.User)

	w = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me handler.UserView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &me))
	assert.Equal(t, registered.User, me)

	w = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnedConversationsRequireTheirToken(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "analyst", "email": "analyst@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &auth))
	require.NotEmpty(t, auth.Token)

	w = doJSON(t, router, http.MethodPost, "/api/v1/conversations", auth.Token, gin.H{"id": "private-1", "title": "Q3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/conversations", auth.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Conversation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "private-1", list[0].ID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPost, "/chat", "", gin.H{"prompt": "peek", "conversation_id": "private-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/chat", auth.Token, gin.H{"prompt": "hello", "conversation_id": "private-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conversations/private-1/messages", auth.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []model.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &messages))
	assert.Len(t, messages, 2)

	w = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", auth.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/conversations/private-1", auth.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/v1/conversations/private-1/files", auth.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	healthy := func(context.Context) error { return nil }

	router := newTestRouter(t, &stubLLM{},
		handler.Dependency{Name: "database", Check: healthy},
		handler.Dependency{Name: "minio", Optional: true, Check: failing},
	)
	w := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"minio":{"ok":false,"optional":true,"message":"down"}`)

	router = newTestRouter(t, &stubLLM{}, handler.Dependency{Name: "redis", Check: failing})
	w = doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
