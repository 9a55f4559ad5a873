package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/priceform/backend-pricing/internal/shop"
	"github.com/priceform/backend-pricing/internal/template"
)

type memStore struct {
	templates   map[uuid.UUID]template.Template
	assignments []template.Assignment
}

func newMemStore() *memStore {
	return &memStore{templates: make(map[uuid.UUID]template.Template)}
}

func (m *memStore) Create(ctx context.Context, tpl template.Template) (template.Template, error) {
	tpl.ID = uuid.New()
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = tpl.CreatedAt
	m.templates[tpl.ID] = tpl
	return tpl, nil
}

func (m *memStore) Update(ctx context.Context, tpl template.Template) (template.Template, error) {
	existing, ok := m.templates[tpl.ID]
	if !ok || existing.ShopDomain != tpl.ShopDomain {
		return template.Template{}, template.ErrNotFound
	}
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now()
	m.templates[tpl.ID] = tpl
	return tpl, nil
}

func (m *memStore) GetByID(ctx context.Context, shopDomain string, id uuid.UUID) (template.Template, error) {
	tpl, ok := m.templates[id]
	if !ok || tpl.ShopDomain != shopDomain {
		return template.Template{}, template.ErrNotFound
	}
	return tpl, nil
}

func (m *memStore) List(ctx context.Context, shopDomain string, limit, offset int) ([]template.Template, int64, error) {
	var out []template.Template
	for _, tpl := range m.templates {
		if tpl.ShopDomain == shopDomain {
			out = append(out, tpl)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Delete(ctx context.Context, shopDomain string, id uuid.UUID) error {
	tpl, ok := m.templates[id]
	if !ok || tpl.ShopDomain != shopDomain {
		return template.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memStore) SetActive(ctx context.Context, shopDomain string, id uuid.UUID, active bool) (template.Template, error) {
	tpl, ok := m.templates[id]
	if !ok || tpl.ShopDomain != shopDomain {
		return template.Template{}, template.ErrNotFound
	}
	tpl.IsActive = active
	m.templates[id] = tpl
	return tpl, nil
}

func (m *memStore) ListActive(ctx context.Context, shopDomain string) ([]template.Template, error) {
	var out []template.Template
	for _, tpl := range m.templates {
		if tpl.ShopDomain == shopDomain && tpl.IsActive {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (m *memStore) UpsertAssignment(ctx context.Context, a template.Assignment) (template.Assignment, error) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.assignments = append(m.assignments, a)
	return a, nil
}

func (m *memStore) ListShopDomains(ctx context.Context) ([]string, error) {
	return []string{"demo.myshopify.com"}, nil
}

func newTestHandler(store *memStore) *Handler {
	return &Handler{
		Store:    store,
		Validate: validator.New(),
		Log:      zerolog.Nop(),
	}
}

func withShop(req *http.Request) *http.Request {
	return req.WithContext(shop.WithShop(req.Context(), "demo.myshopify.com"))
}

func withID(req *http.Request, id uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func postJSON(t *testing.T, body map[string]any, target string) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return withShop(httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw)))
}

func validTemplateBody() map[string]any {
	return map[string]any{
		"name":           "Sticker pricing",
		"pricingFormula": "base_price + width * 0.2",
		"scopeType":      "TAG",
		"scopeValues":    []string{"sticker"},
		"fields": []map[string]any{
			{"key": "width", "label": "Width", "type": "NUMBER", "required": true, "useInFormula": true},
		},
	}
}

func TestCreateTemplate(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.CreateTemplate(rec, postJSON(t, validTemplateBody(), "/api/v1/admin/templates"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.templates, 1)
	for _, tpl := range store.templates {
		require.Equal(t, "demo.myshopify.com", tpl.ShopDomain)
		require.True(t, tpl.IsActive)
	}
}

func TestCreateTemplateRejectsBadFormula(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	body := validTemplateBody()
	body["pricingFormula"] = "base_price + eval(1)"
	rec := httptest.NewRecorder()
	h.CreateTemplate(rec, postJSON(t, body, "/api/v1/admin/templates"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_FORMULA")
	require.Empty(t, store.templates)
}

func TestCreateTemplateRejectsGlobalWithValues(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	body := validTemplateBody()
	body["scopeType"] = "GLOBAL"
	rec := httptest.NewRecorder()
	h.CreateTemplate(rec, postJSON(t, body, "/api/v1/admin/templates"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION")
}

func TestCreateTemplateRejectsUnknownVariable(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	body := validTemplateBody()
	body["pricingFormula"] = "base_price + hieght"
	rec := httptest.NewRecorder()
	h.CreateTemplate(rec, postJSON(t, body, "/api/v1/admin/templates"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown variable")
}

func TestUpdateTemplate(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	created, err := store.Create(context.Background(), template.Template{
		ShopDomain: "demo.myshopify.com", Name: "Old", PricingFormula: "base_price",
		ScopeType: template.ScopeGlobal, IsActive: true,
	})
	require.NoError(t, err)

	body := validTemplateBody()
	body["name"] = "Renamed"
	req := withID(postJSON(t, body, "/api/v1/admin/templates/"+created.ID.String()), created.ID)
	rec := httptest.NewRecorder()
	h.UpdateTemplate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Renamed", store.templates[created.ID].Name)
}

func TestUpdateTemplateNotFound(t *testing.T) {
	h := newTestHandler(newMemStore())

	id := uuid.New()
	req := withID(postJSON(t, validTemplateBody(), "/api/v1/admin/templates/"+id.String()), id)
	rec := httptest.NewRecorder()
	h.UpdateTemplate(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivateDeactivate(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	created, err := store.Create(context.Background(), template.Template{
		ShopDomain: "demo.myshopify.com", Name: "T", PricingFormula: "base_price",
		ScopeType: template.ScopeGlobal, IsActive: false,
	})
	require.NoError(t, err)

	req := withID(withShop(httptest.NewRequest(http.MethodPost, "/x", nil)), created.ID)
	rec := httptest.NewRecorder()
	h.ActivateTemplate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, store.templates[created.ID].IsActive)

	req = withID(withShop(httptest.NewRequest(http.MethodPost, "/x", nil)), created.ID)
	rec = httptest.NewRecorder()
	h.DeactivateTemplate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, store.templates[created.ID].IsActive)
}

func TestValidateFormulaEndpoint(t *testing.T) {
	h := newTestHandler(newMemStore())

	rec := httptest.NewRecorder()
	h.ValidateFormula(rec, postJSON(t, map[string]any{
		"formula":   "base_price * (1 + margin",
		"fieldKeys": []string{"margin"},
	}, "/api/v1/admin/formulas/validate"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Valid  bool     `json:"valid"`
			Errors []string `json:"errors"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
}

func TestTestFormulaEndpoint(t *testing.T) {
	h := newTestHandler(newMemStore())

	rec := httptest.NewRecorder()
	h.TestFormula(rec, postJSON(t, map[string]any{
		"formula":  "round(base_price * 1.15)",
		"bindings": map[string]float64{"base_price": 100},
	}, "/api/v1/admin/formulas/test"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Result float64 `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.InDelta(t, 115.0, resp.Data.Result, 0.001)
}

func TestCollisionsEndpoint(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	for i := 0; i < 2; i++ {
		_, err := store.Create(context.Background(), template.Template{
			ShopDomain: "demo.myshopify.com", Name: "G", PricingFormula: "base_price",
			ScopeType: template.ScopeGlobal, IsActive: true,
		})
		require.NoError(t, err)
	}

	req := withShop(httptest.NewRequest(http.MethodGet, "/api/v1/admin/collisions", nil))
	rec := httptest.NewRecorder()
	h.Collisions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []struct {
			ScopeType  string `json:"scopeType"`
			ScopeValue string `json:"scopeValue"`
		} `json:"data"`
		Cached bool `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "GLOBAL", resp.Data[0].ScopeType)
	require.Equal(t, "*", resp.Data[0].ScopeValue)
	require.False(t, resp.Cached)
}

func TestUpsertAssignmentEndpoint(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	created, err := store.Create(context.Background(), template.Template{
		ShopDomain: "demo.myshopify.com", Name: "T", PricingFormula: "base_price",
		ScopeType: template.ScopeGlobal, IsActive: true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.UpsertAssignment(rec, postJSON(t, map[string]any{
		"templateId": created.ID.String(),
		"productId":  "gid://shopify/Product/42",
		"priority":   7,
	}, "/api/v1/admin/assignments"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.assignments, 1)
	require.Equal(t, 7, store.assignments[0].Priority)
}
