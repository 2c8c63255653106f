package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/internal/infrastructure/storage"
	"marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
)

type fakeUploader struct{}

func (fakeUploader) ItemImageUploadURL(_ context.Context, sellerID, contentType string) (*storage.UploadTicket, error) {
	return &storage.UploadTicket{
		UploadURL:  "https://upload.example/" + sellerID,
		ObjectName: "public/custom-orders/" + sellerID + "/x.png",
	}, nil
}

func newTestServer(t *testing.T, policies map[string]ratelimit.Policy) *echo.Echo {
	t.Helper()

	users := repository.NewMemoryUserRepository(
		&entity.User{ID: "seller-1", Username: "Nimali", Role: "user", BankAccount: &entity.BankAccount{
			BankName: "Sampath", AccountName: "Nimali P", AccountNumber: "0011223344",
		}},
		&entity.User{ID: "buyer-1", Username: "Kasun", Role: "user"},
		&entity.User{ID: "admin", Username: "admin", Role: entity.RoleAdmin},
	)
	conversations := repository.NewMemoryConversationRepository(nil)
	limiter := ratelimit.NewRateLimiter(policies)
	wsManager := websocket.NewManager()

	conversationUseCase := usecase.NewConversationUseCase(conversations, limiter)
	messageUseCase := usecase.NewMessageUseCase(conversations, wsManager, limiter, 2000)
	dispatcher := usecase.NewNotificationDispatcher(repository.NewMemoryNotificationRepository(nil), wsManager)
	customOrderUseCase := usecase.NewCustomOrderUseCase(
		repository.NewMemoryCustomOrderRepository(nil),
		conversations,
		users,
		usecase.NewFulfillmentMaterializer(repository.NewMemoryFulfillmentOrderRepository(nil)),
		dispatcher,
		wsManager,
		limiter,
		usecase.CustomOrderSettings{},
	)
	wsManager.SetBackend(handler.NewSessionBackend(messageUseCase, conversationUseCase))

	verifier := firebase.DevTokenVerifier{}
	names := handler.NewNameResolver(users, nil)

	e := echo.New()
	e.Validator = api.NewValidator()
	Setup(e, Handlers{
		Health:       handler.NewHealthHandler("memory"),
		Conversation: handler.NewConversationHandler(conversationUseCase, names),
		Message:      handler.NewMessageHandler(messageUseCase, 20, 100),
		CustomOrder:  handler.NewCustomOrderHandler(customOrderUseCase, names, fakeUploader{}),
		Notification: handler.NewNotificationHandler(dispatcher),
		WebSocket:    handler.NewWebSocketHandler(wsManager, verifier, nil),
		DevToken:     handler.NewDevTokenHandler(users),
	}, middleware.NewAuthMiddleware(verifier), middleware.NewAdminMiddleware(users), limiter)

	return e
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, e *echo.Echo, method, path, uid string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(raw)
	}

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if uid != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+firebase.DevTokenPrefix+uid)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestV1RequiresBearerToken(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-dev-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationAndMessagingFlow(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodPost, "/v1/conversations", "buyer-1", map[string]interface{}{
		"other_id": "seller-1",
		"context":  map[string]string{"type": "listing", "id": "listing-9", "title": "Batik bag"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var conv entity.Conversation
	decode(t, env, &conv)
	assert.Equal(t, entity.PairKey("buyer-1", "seller-1"), conv.ID)
	assert.Equal(t, "Nimali", conv.ParticipantNames["seller-1"])
	assert.Equal(t, "Kasun", conv.ParticipantNames["buyer-1"])

	rec, env = call(t, e, http.MethodPost, "/v1/conversations", "seller-1", map[string]string{"other_id": "buyer-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var again entity.Conversation
	decode(t, env, &again)
	assert.Equal(t, conv.ID, again.ID)

	for _, text := range []string{"hello", "is the bag available?"} {
		rec, _ = call(t, e, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "buyer-1", map[string]string{"text": text})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, env = call(t, e, http.MethodGet, "/v1/conversations/unread", "seller-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread map[string]int
	decode(t, env, &unread)
	assert.Equal(t, 2, unread["unread_total"])

	rec, env = call(t, e, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages?limit=1", "seller-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items   []entity.Message `json:"items"`
		Cursor  string           `json:"cursor"`
		HasMore bool             `json:"has_more"`
	}
	decode(t, env, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "is the bag available?", page.Items[0].Text)
	assert.True(t, page.HasMore)

	rec, env = call(t, e, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages?limit=1&cursor="+page.Cursor, "seller-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, env, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "hello", page.Items[0].Text)
	assert.False(t, page.HasMore)

	rec, _ = call(t, e, http.MethodPut, "/v1/conversations/"+conv.ID+"/read", "seller-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = call(t, e, http.MethodGet, "/v1/conversations/unread", "seller-1", nil)
	decode(t, env, &unread)
	assert.Equal(t, 0, unread["unread_total"])

	rec, _ = call(t, e, http.MethodGet, "/v1/conversations/"+conv.ID, "admin", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageValidation(t *testing.T) {
	e := newTestServer(t, nil)

	_, env := call(t, e, http.MethodPost, "/v1/conversations", "buyer-1", map[string]string{"other_id": "seller-1"})
	var conv entity.Conversation
	decode(t, env, &conv)

	rec, env := call(t, e, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "buyer-1", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "buyer-1", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, _ = call(t, e, http.MethodPost, "/v1/conversations", "buyer-1", map[string]string{"other_id": "buyer-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomOrderNegotiation(t *testing.T) {
	e := newTestServer(t, nil)

	_, env := call(t, e, http.MethodPost, "/v1/conversations", "seller-1", map[string]string{"other_id": "buyer-1"})
	var conv entity.Conversation
	decode(t, env, &conv)

	rec, env := call(t, e, http.MethodPost, "/v1/custom-orders", "seller-1", map[string]interface{}{
		"buyer_id":        "buyer-1",
		"conversation_id": conv.ID,
		"payment_method":  "bank_transfer",
		"shipping_cost":   300,
		"items": []map[string]interface{}{
			{"name": "Batik bag", "quantity": 1, "unit_price": 4500},
			{"name": "Wallet", "quantity": 2, "unit_price": 1200},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order entity.CustomOrder
	decode(t, env, &order)
	assert.Equal(t, entity.CustomOrderPending, order.Status)
	assert.Equal(t, 6900.0, order.TotalAmount)
	assert.Equal(t, 7200.0, order.GrandTotal)
	assert.Equal(t, "Nimali", order.SellerName)
	require.NotNil(t, order.SellerBankAccount)

	rec, env = call(t, e, http.MethodGet, "/v1/notifications", "buyer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []entity.Notification
	decode(t, env, &notifications)
	require.Len(t, notifications, 1)
	assert.Equal(t, entity.NotificationCustomOrderRequest, notifications[0].Kind)
	assert.Equal(t, "Nimali", notifications[0].CounterpartyName)

	rec, env = call(t, e, http.MethodGet, "/v1/conversations/"+conv.ID+"/custom-orders", "buyer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []entity.CustomOrder
	decode(t, env, &listed)
	require.Len(t, listed, 1)

	rec, env = call(t, e, http.MethodPost, "/v1/custom-orders/"+order.ID+"/accept", "buyer-1", map[string]string{"address": "12 Galle Rd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/v1/custom-orders/"+order.ID+"/accept", "buyer-1", map[string]string{
		"address": "12 Galle Rd, Colombo",
		"phone":   "+94771234567",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var accepted usecase.AcceptCustomOrderResult
	decode(t, env, &accepted)
	assert.Equal(t, entity.CustomOrderAccepted, accepted.Order.Status)
	require.NotNil(t, accepted.Materialization)
	assert.Equal(t, []string{order.ID + "-0", order.ID + "-1"}, accepted.Materialization.OrderIDs)

	rec, _ = call(t, e, http.MethodPost, "/v1/custom-orders/"+order.ID+"/accept", "buyer-1", map[string]string{
		"address": "12 Galle Rd, Colombo",
		"phone":   "+94771234567",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = call(t, e, http.MethodPost, "/v1/custom-orders/"+order.ID+"/accept", "stranger", map[string]string{
		"address": "99 Other St",
		"phone":   "+94700000000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = call(t, e, http.MethodPut, "/v1/custom-orders/"+order.ID+"/buyer", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = call(t, e, http.MethodGet, "/v1/custom-orders/"+order.ID, "stranger", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = call(t, e, http.MethodGet, "/v1/custom-orders/"+order.ID, "buyer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched entity.CustomOrder
	decode(t, env, &fetched)
	assert.Equal(t, "buyer-1", fetched.BuyerID)
	assert.Equal(t, "12 Galle Rd, Colombo", fetched.BuyerAddress)

	rec, env = call(t, e, http.MethodPost, "/v1/custom-orders/"+order.ID+"/materialize", "seller-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var retried usecase.MaterializeResult
	decode(t, env, &retried)
	assert.Empty(t, retried.Created)
	assert.Len(t, retried.Existing, 2)

	rec, _ = call(t, e, http.MethodPut, "/v1/admin/custom-orders/"+order.ID+"/status", "buyer-1", map[string]string{"status": "PAID"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = call(t, e, http.MethodPut, "/v1/admin/custom-orders/"+order.ID+"/status", "admin", map[string]string{"status": "PAID"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid entity.CustomOrder
	decode(t, env, &paid)
	assert.Equal(t, entity.CustomOrderPaid, paid.Status)

	rec, _ = call(t, e, http.MethodPut, "/v1/admin/custom-orders/"+order.ID+"/status", "admin", map[string]string{"status": "ACCEPTED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCustomOrderRequestValidation(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodPost, "/v1/custom-orders", "seller-1", map[string]interface{}{
		"buyer_id":        "buyer-1",
		"conversation_id": "c-1",
		"payment_method":  "bank_transfer",
		"items":           []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/v1/custom-orders", "seller-1", map[string]interface{}{
		"buyer_id":        "buyer-1",
		"conversation_id": "c-1",
		"payment_method":  "cheque",
		"items":           []map[string]interface{}{{"name": "Bag", "quantity": 1, "unit_price": 10}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestGetMissingCustomOrder(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodGet, "/v1/custom-orders/nope", "buyer-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestUploadURL(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodPost, "/v1/custom-orders/uploads", "seller-1", map[string]string{"content_type": "image/png"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ticket storage.UploadTicket
	decode(t, env, &ticket)
	assert.Equal(t, "https://upload.example/seller-1", ticket.UploadURL)

	rec, _ = call(t, e, http.MethodPost, "/v1/custom-orders/uploads", "seller-1", map[string]string{"content_type": "application/zip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevUsersIssueTokens(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := call(t, e, http.MethodPost, "/_dev/users", "", map[string]string{"id": "buyer-2", "username": "Dilan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Token string `json:"token"`
	}
	decode(t, env, &created)
	assert.Equal(t, "dev-buyer-2", created.Token)

	rec, env = call(t, e, http.MethodPost, "/v1/conversations", "buyer-2", map[string]string{"other_id": "seller-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv entity.Conversation
	decode(t, env, &conv)
	assert.Equal(t, "Dilan", conv.ParticipantNames["buyer-2"])
}

func TestPerIPRateLimit(t *testing.T) {
	e := newTestServer(t, map[string]ratelimit.Policy{
		ratelimit.ActionAPIRequest: ratelimit.PerWindow(2, time.Minute),
	})

	for i := 0; i < 2; i++ {
		rec, _ := call(t, e, http.MethodGet, "/v1/conversations", "buyer-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := call(t, e, http.MethodGet, "/v1/conversations", "buyer-1", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = call(t, e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is outside the limited group")
}
