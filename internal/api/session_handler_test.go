package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/service"
)

// stubBatchService implements service.BatchService with overridable
// function fields.
type stubBatchService struct {
	createFn      func(ctx context.Context, name string, specs []domain.ItemSpec) (*domain.BatchSession, error)
	startRunFn    func(ctx context.Context, sessionID uuid.UUID, document, systemPreamble string) error
	cancelRunFn   func(ctx context.Context, sessionID uuid.UUID) error
	getFn         func(ctx context.Context, sessionID uuid.UUID) (*domain.BatchSession, error)
	listFn        func(ctx context.Context) ([]*domain.BatchSession, error)
	deleteFn      func(ctx context.Context, sessionID uuid.UUID) error
	deleteCacheFn func(ctx context.Context, sessionID uuid.UUID) error
}

func (s *stubBatchService) CreateSession(
	ctx context.Context,
	name string,
	specs []domain.ItemSpec,
) (*domain.BatchSession, error) {
	if s.createFn != nil {
		return s.createFn(ctx, name, specs)
	}
	return domain.NewBatchSession(name, specs)
}

func (s *stubBatchService) StartRun(ctx context.Context, sessionID uuid.UUID, document, systemPreamble string) error {
	if s.startRunFn != nil {
		return s.startRunFn(ctx, sessionID, document, systemPreamble)
	}
	return nil
}

func (s *stubBatchService) CancelRun(ctx context.Context, sessionID uuid.UUID) error {
	if s.cancelRunFn != nil {
		return s.cancelRunFn(ctx, sessionID)
	}
	return nil
}

func (s *stubBatchService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.BatchSession, error) {
	if s.getFn != nil {
		return s.getFn(ctx, sessionID)
	}
	return newHandlerTestSession(sessionID), nil
}

func (s *stubBatchService) ListSessions(ctx context.Context) ([]*domain.BatchSession, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubBatchService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, sessionID)
	}
	return nil
}

func (s *stubBatchService) DeleteCache(ctx context.Context, sessionID uuid.UUID) error {
	if s.deleteCacheFn != nil {
		return s.deleteCacheFn(ctx, sessionID)
	}
	return nil
}

func newHandlerTestSession(id uuid.UUID) *domain.BatchSession {
	session, err := domain.NewBatchSession("handler test session", []domain.ItemSpec{
		{SourceName: "a.md", Prompt: "first question"},
		{SourceName: "b.md", Prompt: "second question"},
	})
	if err != nil {
		panic(err)
	}
	session.ID = id
	return session
}

// newTestRouter wires the handler into the same routes the server uses.
func newTestRouter(svc service.BatchService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewSessionHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handler.CreateSession)
		r.Get("/", handler.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetSession)
			r.Delete("/", handler.DeleteSession)
			r.Post("/run", handler.RunSession)
			r.Post("/cancel", handler.CancelSessionRun)
			r.Delete("/cache", handler.DeleteSessionCache)
		})
	})
	return r
}

func doJSONRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSessionHandler_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("valid request creates session", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
			Name: "weekly digest",
			Items: []ItemSpecRequest{
				{SourceName: "a.md", Prompt: "summarize section 1"},
			},
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "weekly digest", resp.Name)
		assert.Equal(t, 1, resp.TotalCount)
		assert.Equal(t, 0, resp.CompletedCount)
		assert.False(t, resp.IsFinished)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, string(domain.ItemStatusPending), resp.Items[0].Status)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader([]byte("{not json")))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing items returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
			Name: "no items",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSessionHandler_GetSession(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("existing session returns 200", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodGet, "/api/sessions/"+sessionID.String(), nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, sessionID.String(), resp.ID)
		assert.Len(t, resp.Items, 2)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			getFn: func(ctx context.Context, id uuid.UUID) (*domain.BatchSession, error) {
				return nil, service.ErrSessionNotFound
			},
		})

		rr := doJSONRequest(t, router, http.MethodGet, "/api/sessions/"+sessionID.String(), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid UUID returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodGet, "/api/sessions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSessionHandler_ListSessions(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubBatchService{
		listFn: func(ctx context.Context) ([]*domain.BatchSession, error) {
			return []*domain.BatchSession{
				newHandlerTestSession(uuid.New()),
				newHandlerTestSession(uuid.New()),
			}, nil
		},
	})

	rr := doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []SessionSummaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
	assert.Equal(t, 2, resp[0].TotalCount)
}

func TestSessionHandler_RunSession(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	runBody := RunSessionRequest{Document: "shared context document"}

	t.Run("accepted run returns 202 with session state", func(t *testing.T) {
		t.Parallel()

		var gotDocument string
		router := newTestRouter(&stubBatchService{
			startRunFn: func(ctx context.Context, id uuid.UUID, document, systemPreamble string) error {
				gotDocument = document
				return nil
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/run", runBody)

		require.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, "shared context document", gotDocument)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, sessionID.String(), resp.ID)
	})

	t.Run("missing document returns 400", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/run", RunSessionRequest{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("active run returns 409", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			startRunFn: func(ctx context.Context, id uuid.UUID, document, systemPreamble string) error {
				return service.ErrRunInProgress
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/run", runBody)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("fully settled session returns 409", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			startRunFn: func(ctx context.Context, id uuid.UUID, document, systemPreamble string) error {
				return service.ErrNothingToRun
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/run", runBody)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			startRunFn: func(ctx context.Context, id uuid.UUID, document, systemPreamble string) error {
				return service.ErrSessionNotFound
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/run", runBody)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestSessionHandler_CancelSessionRun(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("cancel returns 202", func(t *testing.T) {
		t.Parallel()

		var cancelled uuid.UUID
		router := newTestRouter(&stubBatchService{
			cancelRunFn: func(ctx context.Context, id uuid.UUID) error {
				cancelled = id
				return nil
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/cancel", nil)

		require.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, sessionID, cancelled)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			cancelRunFn: func(ctx context.Context, id uuid.UUID) error {
				return service.ErrSessionNotFound
			},
		})

		rr := doJSONRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID.String()+"/cancel", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestSessionHandler_DeleteSession(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("delete returns 204", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+sessionID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("active run blocks deletion with 409", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			deleteFn: func(ctx context.Context, id uuid.UUID) error {
				return service.ErrRunInProgress
			},
		})

		rr := doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+sessionID.String(), nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestSessionHandler_DeleteSessionCache(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("delete cache returns 204", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{})

		rr := doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+sessionID.String()+"/cache", nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("no cache attached returns 404", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(&stubBatchService{
			deleteCacheFn: func(ctx context.Context, id uuid.UUID) error {
				return service.ErrNoCacheAttached
			},
		})

		rr := doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+sessionID.String()+"/cache", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
