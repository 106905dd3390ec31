package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/auth"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/accounts"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/domain/events"
	"github.com/Togather-Foundation/eventhub/internal/domain/users"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, p accounts.RegisterParams) (accounts.RegisterResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(accounts.RegisterResult), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, p accounts.LoginParams) (accounts.Tokens, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(accounts.Tokens), args.Error(1)
}

func (m *MockAccountService) Refresh(ctx context.Context, refreshToken string) (accounts.Tokens, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(accounts.Tokens), args.Error(1)
}

func (m *MockAccountService) Logout(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) ListAll(ctx context.Context) ([]entities.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]entities.Category), args.Error(1)
}

func (m *MockCategoryService) ListPage(ctx context.Context, page, pageSize int, search string, desc bool) (storage.Page[entities.Category], error) {
	args := m.Called(ctx, page, pageSize, search, desc)
	return args.Get(0).(storage.Page[entities.Category]), args.Error(1)
}

func (m *MockCategoryService) Get(ctx context.Context, id int64) (*entities.Category, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*entities.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) Create(ctx context.Context, name string) (*entities.Category, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*entities.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) Update(ctx context.Context, id int64, name string) (*entities.Category, error) {
	args := m.Called(ctx, id, name)
	c, _ := args.Get(0).(*entities.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListAll(ctx context.Context) ([]entities.Event, error) {
	args := m.Called(ctx)
	return args.Get(0).([]entities.Event), args.Error(1)
}

func (m *MockEventService) ListPage(ctx context.Context, filter events.Filter, sort events.Sort, page, pageSize int) (storage.Page[entities.Event], error) {
	args := m.Called(ctx, filter, sort, page, pageSize)
	return args.Get(0).(storage.Page[entities.Event]), args.Error(1)
}

func (m *MockEventService) Get(ctx context.Context, id int64) (*entities.Event, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*entities.Event)
	return e, args.Error(1)
}

func (m *MockEventService) Create(ctx context.Context, in events.Input) (*entities.Event, error) {
	args := m.Called(ctx, in)
	e, _ := args.Get(0).(*entities.Event)
	return e, args.Error(1)
}

func (m *MockEventService) Update(ctx context.Context, id int64, in events.Input) (*entities.Event, error) {
	args := m.Called(ctx, id, in)
	e, _ := args.Get(0).(*entities.Event)
	return e, args.Error(1)
}

func (m *MockEventService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventService) SetImage(ctx context.Context, id int64, fileName string, content io.Reader) (string, error) {
	args := m.Called(ctx, id, fileName, content)
	return args.String(0), args.Error(1)
}

func (m *MockEventService) GetImagePath(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListEventUsers(ctx context.Context, eventID int64) ([]entities.User, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]entities.User), args.Error(1)
}

func (m *MockUserService) ListEventUsersPage(ctx context.Context, eventID int64, sort users.SortField, desc bool, page, pageSize int) (storage.Page[entities.User], error) {
	args := m.Called(ctx, eventID, sort, desc, page, pageSize)
	return args.Get(0).(storage.Page[entities.User]), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*entities.User)
	return u, args.Error(1)
}

func (m *MockUserService) AddParticipant(ctx context.Context, userID, eventID int64) error {
	args := m.Called(ctx, userID, eventID)
	return args.Error(0)
}

func (m *MockUserService) RemoveParticipant(ctx context.Context, userID, eventID int64) error {
	args := m.Called(ctx, userID, eventID)
	return args.Error(0)
}

func testContent() config.ContentConfig {
	return config.Defaults().Content
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

// asUser attaches access token claims for the given user to the request.
func asUser(r *http.Request, userID string, role entities.Role) *http.Request {
	claims := &auth.Claims{Role: string(role), RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p problem.ProblemDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}
