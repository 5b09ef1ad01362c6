package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/contracts"
	"spmigrate/domain/journal"
	"spmigrate/domain/principal"
	"spmigrate/interfaces/web/presenters"
	"spmigrate/test/mocks"
)

type MockPrincipalResolver struct {
	mock.Mock
}

func (m *MockPrincipalResolver) RemapAll(ctx context.Context, principals []string, workers int) ([]principal.ResolutionResult, error) {
	args := m.Called(ctx, principals, workers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]principal.ResolutionResult), args.Error(1)
}

type MockDomainLookup struct {
	mock.Mock
}

func (m *MockDomainLookup) ResolveFriendlyDomainToLdap(ctx context.Context, friendly string) (string, error) {
	args := m.Called(ctx, friendly)
	return args.String(0), args.Error(1)
}

func newTestRouter(h *ResolveHandlers) http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestResolveHandlers_Resolve(t *testing.T) {
	resolver := new(MockPrincipalResolver)
	h := NewResolveHandlers(resolver, new(MockDomainLookup), nil, nil, 2)
	router := newTestRouter(h)

	t.Run("batch", func(t *testing.T) {
		resolver.On("RemapAll", mock.Anything, []string{`CONTOSO\jdoe`, `CONTOSO\ghost`}, 2).Return([]principal.ResolutionResult{
			principal.Resolved(`CONTOSO\jdoe`, "jdoe@contoso.com", principal.SourceDirectoryLookup),
			principal.Unresolved(`CONTOSO\ghost`),
		}, nil).Once()

		body := `{"principals":["CONTOSO\\jdoe","CONTOSO\\ghost"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

		var view presenters.ResolutionListView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, 2, view.Total)
		assert.Equal(t, 1, view.Resolved)
		assert.Equal(t, "jdoe@contoso.com", view.Results[0].Principal)
	})

	t.Run("single_principal", func(t *testing.T) {
		resolver.On("RemapAll", mock.Anything, []string{"old.user"}, 2).Return([]principal.ResolutionResult{
			principal.Resolved("old.user", "new.user@contoso.com", principal.SourceMappingOverride),
		}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{"principal":"old.user"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "mapping_override")
	})

	t.Run("empty_request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid_json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("directory_unavailable", func(t *testing.T) {
		resolver.On("RemapAll", mock.Anything, []string{`CONTOSO\x`}, 2).
			Return(nil, fmt.Errorf("lookup: %w", principal.ErrDirectoryUnavailable)).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{"principal":"CONTOSO\\x"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	resolver.AssertExpectations(t)
}

func TestResolveHandlers_GetDomain(t *testing.T) {
	domains := new(MockDomainLookup)
	router := newTestRouter(NewResolveHandlers(new(MockPrincipalResolver), domains, nil, nil, 1))

	domains.On("ResolveFriendlyDomainToLdap", mock.Anything, "CONTOSO").Return("contoso.com", nil)
	domains.On("ResolveFriendlyDomainToLdap", mock.Anything, "NOPE").
		Return("", fmt.Errorf("resolve: %w", principal.ErrInvalidDomain))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/domains/CONTOSO", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view presenters.DomainView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "contoso.com", view.FQDN)
	assert.Equal(t, "LDAP://contoso.com", view.ConnectionString)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/domains/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveHandlers_GetUnresolved(t *testing.T) {
	repo := new(mocks.MockResolutionJournalRepository)
	router := newTestRouter(NewResolveHandlers(new(MockPrincipalResolver), new(MockDomainLookup), repo, nil, 1))

	repo.On("GetRunSummary", mock.Anything, "run-1").Return(&journal.RunSummary{
		Run:        &journal.Run{ID: "run-1"},
		Total:      2,
		Directory:  1,
		Unresolved: 1,
	}, nil)
	repo.On("ListUnresolved", mock.Anything, "run-1").Return([]*journal.Entry{
		{RunID: "run-1", Input: `CONTOSO\ghost`, Output: `CONTOSO\ghost`},
	}, nil)
	repo.On("GetRunSummary", mock.Anything, "missing").
		Return(nil, fmt.Errorf("get run missing: %w", contracts.ErrRunNotFound))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/unresolved", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view presenters.RunReportView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Unresolved)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, `CONTOSO\ghost`, view.Entries[0].Input)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/missing/unresolved", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	repo.AssertExpectations(t)
}

func TestResolveHandlers_GetUnresolved_JournalDisabled(t *testing.T) {
	router := newTestRouter(NewResolveHandlers(new(MockPrincipalResolver), new(MockDomainLookup), nil, nil, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/unresolved", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

type healthFunc func(ctx context.Context) (map[string]any, error)

func (f healthFunc) Health(ctx context.Context) (map[string]any, error) { return f(ctx) }

func TestResolveHandlers_Health(t *testing.T) {
	healthy := healthFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"read_pool": map[string]any{}}, nil
	})
	router := newTestRouter(NewResolveHandlers(new(MockPrincipalResolver), new(MockDomainLookup), nil, healthy, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	failing := healthFunc(func(context.Context) (map[string]any, error) {
		return nil, fmt.Errorf("ping failed")
	})
	router = newTestRouter(NewResolveHandlers(new(MockPrincipalResolver), new(MockDomainLookup), nil, failing, 1))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
