package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/service"
	"obra-data/internal/store"
)

// Stubs embed the service interface; a call to a method a test did not set
// panics on the nil embed and surfaces as a 500 through the recoverer.

type stubHierarchy struct {
	service.HierarchyService
	createSite  func(context.Context, service.CreateNodeRequest) (*domain.Site, error)
	getSite     func(context.Context, int64) (*domain.Site, error)
	listModules func(context.Context, int64) ([]*domain.Module, error)
}

func (s *stubHierarchy) CreateSite(ctx context.Context, req service.CreateNodeRequest) (*domain.Site, error) {
	return s.createSite(ctx, req)
}

func (s *stubHierarchy) GetSite(ctx context.Context, id int64) (*domain.Site, error) {
	return s.getSite(ctx, id)
}

func (s *stubHierarchy) ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error) {
	return s.listModules(ctx, siteID)
}

type stubPricing struct {
	service.PricingService
	setPrice func(context.Context, service.SetPriceRequest) (*service.SetPriceResponse, error)
	priceAt  func(context.Context, service.PriceAtRequest) (*service.PriceView, error)
}

func (s *stubPricing) SetPrice(ctx context.Context, req service.SetPriceRequest) (*service.SetPriceResponse, error) {
	return s.setPrice(ctx, req)
}

func (s *stubPricing) PriceAt(ctx context.Context, req service.PriceAtRequest) (*service.PriceView, error) {
	return s.priceAt(ctx, req)
}

type stubTasks struct {
	service.TaskService
	assign  func(context.Context, service.AssignResponsibleRequest) (*service.AllocationResult, error)
	replace func(context.Context, service.ReplaceAssignmentsRequest) (*service.AllocationResult, error)
	remove  func(context.Context, int64, int64) (*service.AllocationResult, error)
}

func (s *stubTasks) AssignResponsible(ctx context.Context, req service.AssignResponsibleRequest) (*service.AllocationResult, error) {
	return s.assign(ctx, req)
}

func (s *stubTasks) ReplaceAssignments(ctx context.Context, req service.ReplaceAssignmentsRequest) (*service.AllocationResult, error) {
	return s.replace(ctx, req)
}

func (s *stubTasks) RemoveResponsible(ctx context.Context, taskID, responsibleID int64) (*service.AllocationResult, error) {
	return s.remove(ctx, taskID, responsibleID)
}

type stubImport struct {
	service.ImportService
	importHierarchy func(context.Context, int64, io.Reader) (*service.ImportReport, error)
	export          func(context.Context, int64) ([]byte, error)
}

func (s *stubImport) ImportHierarchy(ctx context.Context, siteID int64, r io.Reader) (*service.ImportReport, error) {
	return s.importHierarchy(ctx, siteID, r)
}

func (s *stubImport) ExportHierarchy(ctx context.Context, siteID int64) ([]byte, error) {
	return s.export(ctx, siteID)
}

type stubFeed struct {
	after string
	count int64
	out   []store.StoredEvent
	err   error
}

func (f *stubFeed) Recent(_ context.Context, after string, count int64) ([]store.StoredEvent, error) {
	f.after, f.count = after, count
	return f.out, f.err
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type envelope struct {
	Code      int             `json:"code"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	ErrorKind string          `json:"error_kind"`
	Result    json.RawMessage `json:"result"`
}

func serve(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func apiRouter(api ...Registrar) http.Handler {
	return NewRouter(zap.NewNop(), nil, api...)
}

func TestHierarchyHandler_CreateSite(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubHierarchy{
		createSite: func(_ context.Context, req service.CreateNodeRequest) (*domain.Site, error) {
			assert.Equal(t, "Residencial Aurora", req.Name)
			return &domain.Site{ID: 7, Name: req.Name, CreatedAt: created}, nil
		},
	}
	router := apiRouter(NewHierarchyHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/sites", map[string]any{"name": "Residencial Aurora"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResultSuccess, env.Code)

	var site map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &site))
	assert.EqualValues(t, 7, site["id"])
	assert.Equal(t, "Residencial Aurora", site["name"])
}

func TestHierarchyHandler_CreateSiteRequiresName(t *testing.T) {
	router := apiRouter(NewHierarchyHandler(&stubHierarchy{}, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/sites", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", env.ErrorKind)

	rec, env = serve(t, router, http.MethodPost, "/api/v1/sites", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "request body is required")
}

func TestHierarchyHandler_DuplicateNameIsConflict(t *testing.T) {
	svc := &stubHierarchy{
		createSite: func(context.Context, service.CreateNodeRequest) (*domain.Site, error) {
			return nil, fmt.Errorf("site %q: %w", "Aurora", domain.ErrDuplicateName)
		},
	}
	router := apiRouter(NewHierarchyHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/sites", map[string]any{"name": "Aurora"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateName", env.ErrorKind)
	assert.Equal(t, ResultError, env.Code)
}

func TestHierarchyHandler_GetSite(t *testing.T) {
	svc := &stubHierarchy{
		getSite: func(_ context.Context, id int64) (*domain.Site, error) {
			return nil, fmt.Errorf("site %d: %w", id, domain.ErrNotFound)
		},
	}
	router := apiRouter(NewHierarchyHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodGet, "/api/v1/sites/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.ErrorKind)

	rec, env = serve(t, router, http.MethodGet, "/api/v1/sites/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", env.ErrorKind)
}

func TestHierarchyHandler_ListModulesNeedsSite(t *testing.T) {
	svc := &stubHierarchy{
		listModules: func(_ context.Context, siteID int64) ([]*domain.Module, error) {
			assert.EqualValues(t, 3, siteID)
			return nil, nil
		},
	}
	router := apiRouter(NewHierarchyHandler(svc, zap.NewNop()))

	rec, _ := serve(t, router, http.MethodGet, "/api/v1/modules", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := serve(t, router, http.MethodGet, "/api/v1/modules?site_id=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Result))
}

func TestStoreFailureHidesDetail(t *testing.T) {
	svc := &stubHierarchy{
		getSite: func(context.Context, int64) (*domain.Site, error) {
			return nil, errors.New("failed to get site: pq: connection refused")
		},
	}
	router := apiRouter(NewHierarchyHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodGet, "/api/v1/sites/1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", env.Message)
	assert.Empty(t, env.ErrorKind)
}

func TestPanicIsRecovered(t *testing.T) {
	// getSite unset: the stub dereferences a nil func.
	router := apiRouter(NewHierarchyHandler(&stubHierarchy{}, zap.NewNop()))

	rec, env := serve(t, router, http.MethodGet, "/api/v1/sites/1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", env.Message)
}

func TestUnknownRoute(t *testing.T) {
	router := apiRouter()
	rec, env := serve(t, router, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.ErrorKind)
}

func TestPricingHandler_SetPrice(t *testing.T) {
	validFrom := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubPricing{
		setPrice: func(_ context.Context, req service.SetPriceRequest) (*service.SetPriceResponse, error) {
			assert.EqualValues(t, 2, req.TaskTypeID)
			assert.EqualValues(t, 9, req.LocationID)
			assert.Equal(t, "m2", req.Unit)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("45.50")))
			require.NotNil(t, req.EffectiveDate)
			assert.True(t, req.EffectiveDate.Equal(validFrom))

			old := &domain.Price{ID: 1, TaskTypeID: 2, LocationID: 9, Amount: decimal.NewFromInt(40), ValidFrom: validFrom.AddDate(0, -2, 0)}
			old.ValidTo.Time, old.ValidTo.Valid = validFrom.AddDate(0, 0, -1), true
			cur := &domain.Price{ID: 2, TaskTypeID: 2, LocationID: 9, Amount: req.Amount, ValidFrom: validFrom}
			return &service.SetPriceResponse{
				Price:      service.PriceView{Price: cur, State: domain.PriceActive},
				Superseded: []service.PriceView{{Price: old, State: domain.PriceClosed}},
			}, nil
		},
	}
	router := apiRouter(NewPricingHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/prices",
		`{"task_type_id":2,"location_id":9,"unit":"m2","amount":"45.50","effective_date":"2026-05-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	var out struct {
		Price      map[string]any   `json:"price"`
		Superseded []map[string]any `json:"superseded"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &out))
	assert.Equal(t, "45.50", out.Price["amount"])
	assert.Equal(t, "ACTIVE", out.Price["state"])
	assert.Nil(t, out.Price["valid_to"])
	require.Len(t, out.Superseded, 1)
	assert.Equal(t, "2026-04-30", out.Superseded[0]["valid_to"])
	assert.Equal(t, "CLOSED", out.Superseded[0]["state"])
}

func TestPricingHandler_SetPriceErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		kind   string
	}{
		{"missing amount", `{"task_type_id":2,"location_id":9}`, nil, http.StatusBadRequest, "InvalidArgument"},
		{"bad date", `{"task_type_id":2,"location_id":9,"amount":"1","effective_date":"01/05/2026"}`, nil, http.StatusBadRequest, "InvalidArgument"},
		{"negative", `{"task_type_id":2,"location_id":9,"amount":"-1"}`, domain.ErrNegativeAmount, http.StatusBadRequest, "NegativeAmount"},
		{"same day", `{"task_type_id":2,"location_id":9,"amount":"1"}`, domain.ErrPriceConflict, http.StatusConflict, "PriceConflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPricing{
				setPrice: func(context.Context, service.SetPriceRequest) (*service.SetPriceResponse, error) {
					return nil, tt.err
				},
			}
			router := apiRouter(NewPricingHandler(svc, zap.NewNop()))
			rec, env := serve(t, router, http.MethodPost, "/api/v1/prices", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, env.ErrorKind)
		})
	}
}

func TestPricingHandler_PriceAt(t *testing.T) {
	svc := &stubPricing{
		priceAt: func(_ context.Context, req service.PriceAtRequest) (*service.PriceView, error) {
			assert.Empty(t, req.Unit)
			assert.Nil(t, req.On)
			return nil, fmt.Errorf("no price: %w", domain.ErrNotFound)
		},
	}
	router := apiRouter(NewPricingHandler(svc, zap.NewNop()))

	rec, _ := serve(t, router, http.MethodGet, "/api/v1/prices/at?task_type_id=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := serve(t, router, http.MethodGet, "/api/v1/prices/at?task_type_id=1&location_id=2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.ErrorKind)
}

func allocation(taskID int64, total string, primaries int, warnings ...string) *service.AllocationResult {
	tot := decimal.RequireFromString(total)
	return &service.AllocationResult{
		Status: domain.AllocationStatus{
			TaskID:       taskID,
			Total:        tot,
			Complete:     tot.Equal(decimal.NewFromInt(100)),
			PrimaryCount: primaries,
		},
		Warnings: warnings,
	}
}

func TestTaskHandler_AssignDefaultsToFullShare(t *testing.T) {
	svc := &stubTasks{
		assign: func(_ context.Context, req service.AssignResponsibleRequest) (*service.AllocationResult, error) {
			assert.EqualValues(t, 11, req.TaskID)
			assert.EqualValues(t, 4, req.ResponsibleID)
			assert.True(t, req.Percentage.Equal(decimal.NewFromInt(100)))
			assert.True(t, req.IsPrimary)
			return allocation(11, "100", 1), nil
		},
	}
	router := apiRouter(NewTaskHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/tasks/11/assignments", `{"responsible_id":4,"is_primary":true}`)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.JSONEq(t, `{"task_id":11,"total":"100.00","complete":true,"primary_count":1,"warnings":[]}`, string(env.Result))
}

func TestTaskHandler_AssignReportsWarnings(t *testing.T) {
	svc := &stubTasks{
		assign: func(_ context.Context, req service.AssignResponsibleRequest) (*service.AllocationResult, error) {
			assert.True(t, req.Percentage.Equal(decimal.NewFromInt(60)))
			return allocation(11, "60", 0, "allocation totals 60.00%, expected 100%", "no primary responsible"), nil
		},
	}
	router := apiRouter(NewTaskHandler(svc, zap.NewNop()))

	rec, env := serve(t, router, http.MethodPost, "/api/v1/tasks/11/assignments", `{"responsible_id":4,"percentage":"60"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &out))
	assert.Equal(t, false, out["complete"])
	assert.Len(t, out["warnings"], 2)
}

func TestTaskHandler_AssignErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"percentage", domain.ErrInvalidPercentage, http.StatusBadRequest, "InvalidPercentage"},
		{"duplicate", domain.ErrConstraintViolation, http.StatusConflict, "ConstraintViolation"},
		{"strict", domain.ErrIncompleteAllocation, http.StatusConflict, "IncompleteAllocation"},
		{"missing task", domain.ErrNotFound, http.StatusNotFound, "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubTasks{
				assign: func(context.Context, service.AssignResponsibleRequest) (*service.AllocationResult, error) {
					return nil, fmt.Errorf("task 11: %w", tt.err)
				},
			}
			router := apiRouter(NewTaskHandler(svc, zap.NewNop()))
			rec, env := serve(t, router, http.MethodPost, "/api/v1/tasks/11/assignments", `{"responsible_id":4,"percentage":"150"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, env.ErrorKind)
		})
	}
}

func TestTaskHandler_ReplaceAndRemove(t *testing.T) {
	svc := &stubTasks{
		replace: func(_ context.Context, req service.ReplaceAssignmentsRequest) (*service.AllocationResult, error) {
			require.Len(t, req.Assignments, 2)
			assert.True(t, req.Assignments[0].Percentage.Equal(decimal.NewFromInt(70)))
			assert.True(t, req.Assignments[0].IsPrimary)
			assert.True(t, req.Assignments[1].Percentage.Equal(decimal.NewFromInt(30)))
			return allocation(5, "100", 1), nil
		},
		remove: func(_ context.Context, taskID, responsibleID int64) (*service.AllocationResult, error) {
			assert.EqualValues(t, 5, taskID)
			assert.EqualValues(t, 8, responsibleID)
			return allocation(5, "70", 1, "allocation totals 70.00%, expected 100%"), nil
		},
	}
	router := apiRouter(NewTaskHandler(svc, zap.NewNop()))

	rec, _ := serve(t, router, http.MethodPut, "/api/v1/tasks/5/assignments",
		`{"assignments":[{"responsible_id":3,"percentage":"70","is_primary":true},{"responsible_id":8,"percentage":"30"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, router, http.MethodPut, "/api/v1/tasks/5/assignments", `{"assignments":[{"percentage":"70"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := serve(t, router, http.MethodDelete, "/api/v1/tasks/5/assignments/8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Result), `"total":"70.00"`)
}

func multipartUpload(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "hierarchy.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportHandler_Import(t *testing.T) {
	svc := &stubImport{
		importHierarchy: func(_ context.Context, siteID int64, r io.Reader) (*service.ImportReport, error) {
			assert.EqualValues(t, 3, siteID)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "xlsx-bytes", string(got))
			return &service.ImportReport{Rows: 2, Apartments: 2, Reused: 3}, nil
		},
	}
	router := apiRouter(NewImportHandler(svc, zap.NewNop()))

	body, ctype := multipartUpload(t, "file", []byte("xlsx-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sites/3/import", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"apartments_created":2`)

	body, ctype = multipartUpload(t, "other", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sites/3/import", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandler_Export(t *testing.T) {
	svc := &stubImport{
		export: func(_ context.Context, siteID int64) ([]byte, error) {
			return []byte("PK"), nil
		},
	}
	router := apiRouter(NewImportHandler(svc, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites/3/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=site-3-hierarchy.xlsx", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", rec.Body.String())
}

func TestEventHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		router := apiRouter(NewEventHandler(nil, zap.NewNop()))
		rec, env := serve(t, router, http.MethodGet, "/api/v1/events", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "events disabled", env.Message)
	})

	t.Run("recent", func(t *testing.T) {
		feed := &stubFeed{out: []store.StoredEvent{{
			StreamID: "1-0",
			Event:    domain.Event{ID: "e1", Type: domain.EventSiteCreated, EntityID: 7},
		}}}
		router := apiRouter(NewEventHandler(feed, zap.NewNop()))
		rec, env := serve(t, router, http.MethodGet, "/api/v1/events?after=0-1&limit=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0-1", feed.after)
		assert.EqualValues(t, 10, feed.count)
		assert.Contains(t, string(env.Result), `"stream_id":"1-0"`)
	})

	t.Run("limit", func(t *testing.T) {
		router := apiRouter(NewEventHandler(&stubFeed{}, zap.NewNop()))
		rec, _ := serve(t, router, http.MethodGet, "/api/v1/events?limit=5000", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	healthy := NewRouter(zap.NewNop(), NewHealthHandler(stubPinger{}, nil))
	rec, _ := serve(t, healthy, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "not configured", resp.Services["redis"])

	down := NewRouter(zap.NewNop(), NewHealthHandler(stubPinger{err: errors.New("refused")}, nil))
	rec, _ = serve(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
