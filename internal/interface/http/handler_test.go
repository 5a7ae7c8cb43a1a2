package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	userapp "github.com/modu-mall/account-api/internal/application"
	"github.com/modu-mall/account-api/internal/domain/entity"
	"github.com/modu-mall/account-api/internal/domain/repository"
	handlers "github.com/modu-mall/account-api/internal/interface/http"
	"github.com/modu-mall/account-api/internal/router/modules"
	"github.com/modu-mall/account-api/pkg/helpers"
	"github.com/modu-mall/account-api/pkg/validation"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*entity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*entity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) GetAll(ctx context.Context) ([]*entity.User, error) {
	args := m.Called(ctx)
	if us, ok := args.Get(0).([]*entity.User); ok {
		return us, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, id string, fields repository.UpdateFields) (*entity.User, error) {
	args := m.Called(ctx, id, fields)
	if u, ok := args.Get(0).(*entity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// newTestRouter assembles the API routes the way main does, with every
// optional backing service absent so only the repository is exercised.
func newTestRouter(repo repository.UserRepository) (*gin.Engine, *helpers.JWTManager) {
	gin.SetMode(gin.TestMode)
	validation.Init()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	jwt := helpers.NewJWTManager("test-secret", time.Hour)
	svc := userapp.NewService(repo, jwt, nil, logger, nil, "", nil, false, nil, "")

	userHandler := handlers.NewUserHandler(svc, logger, "localhost", false)
	accountHandler := handlers.NewAccountHandler(svc, logger)

	r := gin.New()
	api := r.Group("/api")
	modules.NewUserModule(userHandler, jwt).Register(api)
	modules.NewAccountModule(accountHandler, jwt).Register(api)
	return r, jwt
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates account and never leaks the hash", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, repository.ErrNotFound)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).Return(nil)

		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/register", "", map[string]any{
			"email":     "new@example.com",
			"full_name": "New User",
			"password":  "sup3rsecret",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w)
		require.Equal(t, true, env["success"])
		data := env["data"].(map[string]any)
		require.Equal(t, "new@example.com", data["email"])
		require.NotContains(t, data, "password")
		require.NotContains(t, w.Body.String(), "sup3rsecret")
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByEmail", mock.Anything, "taken@example.com").
			Return(&entity.User{ID: "u1", Email: "taken@example.com"}, nil)

		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/register", "", map[string]any{
			"email":     "taken@example.com",
			"full_name": "Someone",
			"password":  "sup3rsecret",
		})

		require.Equal(t, http.StatusConflict, w.Code)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		repo := new(mockRepo)
		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/register", "", map[string]any{
			"email":     "new@example.com",
			"full_name": "New User",
			"password":  "short",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})
}

func TestLoginEndpoint(t *testing.T) {
	hash, err := helpers.HashPassword("correct-horse")
	require.NoError(t, err)
	stored := &entity.User{ID: "u1", Email: "a@example.com", FullName: "Alice", Password: hash}

	t.Run("success sets the access token cookie", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByEmail", mock.Anything, "a@example.com").Return(stored, nil)

		r, jwt := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]any{
			"email":    "a@example.com",
			"password": "correct-horse",
		})

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		data := env["data"].(map[string]any)
		claims, err := jwt.Parse(data["token"].(string))
		require.NoError(t, err)
		require.Equal(t, "u1", claims.UserID)

		var sessionCookie *http.Cookie
		for _, ck := range w.Result().Cookies() {
			if ck.Name == "access_token" {
				sessionCookie = ck
			}
		}
		require.NotNil(t, sessionCookie)
		require.NotEmpty(t, sessionCookie.Value)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByEmail", mock.Anything, "a@example.com").Return(stored, nil)

		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]any{
			"email":    "a@example.com",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email is unauthorized", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, repository.ErrNotFound)

		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]any{
			"email":    "nobody@example.com",
			"password": "whatever",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFederatedLoginEndpoint(t *testing.T) {
	repo := new(mockRepo)
	repo.On("GetByEmail", mock.Anything, "k@example.com").
		Return(&entity.User{ID: "u2", Email: "k@example.com", FullName: "Stored Name", LoginTypeCode: "kakao"}, nil)

	r, _ := newTestRouter(repo)
	w := doJSON(t, r, http.MethodPost, "/api/login/federated", "", map[string]any{
		"email":           "k@example.com",
		"full_name":       "Caller Name",
		"login_type_code": "kakao",
	})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	data := env["data"].(map[string]any)
	require.Equal(t, "Stored Name", data["full_name"])
}

func TestProfileEndpoint(t *testing.T) {
	stored := &entity.User{ID: "u1", Email: "a@example.com", FullName: "Alice"}

	t.Run("requires a token", func(t *testing.T) {
		repo := new(mockRepo)
		r, _ := newTestRouter(repo)
		w := doJSON(t, r, http.MethodGet, "/api/profile", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("returns the caller's record", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u1").Return(stored, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		data := env["data"].(map[string]any)
		require.Equal(t, "a@example.com", data["email"])
	})
}

func TestUpdateEndpoint(t *testing.T) {
	t.Run("cannot patch another account", func(t *testing.T) {
		repo := new(mockRepo)
		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodPatch, "/api/users/other", token, map[string]any{
			"full_name": "Mallory",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("patches own account", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u1").
			Return(&entity.User{ID: "u1", Email: "a@example.com", FullName: "Alice"}, nil)
		repo.On("Update", mock.Anything, "u1", mock.MatchedBy(func(f repository.UpdateFields) bool {
			return f.FullName != nil && *f.FullName == "Alice Renamed" && f.Password == nil
		})).Return(&entity.User{ID: "u1", Email: "a@example.com", FullName: "Alice Renamed"}, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodPatch, "/api/users/u1", token, map[string]any{
			"full_name": "Alice Renamed",
		})
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		data := env["data"].(map[string]any)
		require.Equal(t, "Alice Renamed", data["full_name"])
	})

	t.Run("admin may patch any account", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u9").
			Return(&entity.User{ID: "u9", Email: "x@example.com", FullName: "Broken"}, nil)
		repo.On("Update", mock.Anything, "u9", mock.Anything).
			Return(&entity.User{ID: "u9", Email: "x@example.com", FullName: "Fixed"}, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("admin-1", true)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodPatch, "/api/users/u9", token, map[string]any{
			"full_name": "Fixed",
		})
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestDeleteSelfEndpoint(t *testing.T) {
	hash, err := helpers.HashPassword("correct-horse")
	require.NoError(t, err)

	t.Run("wrong password is rejected", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u1").
			Return(&entity.User{ID: "u1", Email: "a@example.com", Password: hash}, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/users/u1", token, map[string]any{
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("correct password deletes", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u1").
			Return(&entity.User{ID: "u1", Email: "a@example.com", Password: hash}, nil)
		repo.On("Delete", mock.Anything, "u1").Return(nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/users/u1", token, map[string]any{
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("federated account without a password gets a conflict", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u2").
			Return(&entity.User{ID: "u2", Email: "k@example.com", LoginTypeCode: "kakao"}, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u2", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/users/u2", token, map[string]any{
			"password": "anything",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("admins still need to own the account", func(t *testing.T) {
		repo := new(mockRepo)
		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("admin-1", true)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/users/u1", token, map[string]any{
			"password": "anything",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	t.Run("list is admin only", func(t *testing.T) {
		repo := new(mockRepo)
		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("u1", false)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin lists everyone", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetAll", mock.Anything).Return([]*entity.User{
			{ID: "u1", Email: "a@example.com"},
			{ID: "u2", Email: "b@example.com"},
		}, nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("admin-1", true)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		meta := env["meta"].(map[string]any)
		require.EqualValues(t, 2, meta["count"])
	})

	t.Run("admin deletes without a password", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u1").
			Return(&entity.User{ID: "u1", Email: "a@example.com"}, nil)
		repo.On("Delete", mock.Anything, "u1").Return(nil)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("admin-1", true)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/admin/users/u1", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("admin delete of a missing account is 404", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)

		r, jwt := newTestRouter(repo)
		token, _, err := jwt.Generate("admin-1", true)
		require.NoError(t, err)

		w := doJSON(t, r, http.MethodDelete, "/api/admin/users/ghost", token, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
