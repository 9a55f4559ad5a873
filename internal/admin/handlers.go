package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/priceform/backend-pricing/internal/common"
	"github.com/priceform/backend-pricing/internal/formula"
	"github.com/priceform/backend-pricing/internal/obs"
	"github.com/priceform/backend-pricing/internal/pricing"
	"github.com/priceform/backend-pricing/internal/shop"
	"github.com/priceform/backend-pricing/internal/template"
)

// Handler exposes the merchant-facing template management API.
type Handler struct {
	Store    template.Store
	Cache    *template.Cache
	Validate *validator.Validate
	Log      zerolog.Logger
}

type templatePayload struct {
	Name               string                  `json:"name" validate:"required,max=200"`
	PricingFormula     string                  `json:"pricingFormula" validate:"required"`
	ScopeType          template.ScopeType      `json:"scopeType" validate:"required,oneof=GLOBAL PRODUCT COLLECTION VENDOR TAG"`
	ScopeValues        []string                `json:"scopeValues"`
	Fields             []template.Field        `json:"fields" validate:"dive"`
	IsActive           *bool                   `json:"isActive"`
	HasExpressOption   bool                    `json:"hasExpressOption"`
	ExpressMultiplier  float64                 `json:"expressMultiplier"`
	ExpressLabel       string                  `json:"expressLabel"`
	MinQuantity        *int                    `json:"minQuantity"`
	MaxQuantity        *int                    `json:"maxQuantity"`
	MinQuantityMessage string                  `json:"minQuantityMessage"`
	MaxQuantityMessage string                  `json:"maxQuantityMessage"`
	DiscountTiers      []template.DiscountTier `json:"discountTiers"`
}

func (p templatePayload) toTemplate(shopDomain string) template.Template {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return template.Template{
		ShopDomain:         shopDomain,
		Name:               strings.TrimSpace(p.Name),
		PricingFormula:     p.PricingFormula,
		ScopeType:          p.ScopeType,
		ScopeValues:        p.ScopeValues,
		Fields:             p.Fields,
		IsActive:           active,
		HasExpressOption:   p.HasExpressOption,
		ExpressMultiplier:  p.ExpressMultiplier,
		ExpressLabel:       strings.TrimSpace(p.ExpressLabel),
		MinQuantity:        p.MinQuantity,
		MaxQuantity:        p.MaxQuantity,
		MinQuantityMessage: p.MinQuantityMessage,
		MaxQuantityMessage: p.MaxQuantityMessage,
		DiscountTiers:      p.DiscountTiers,
	}
}

// CreateTemplate persists a new pricing template after validating its formula.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	payload, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	tpl := payload.toTemplate(shopDomain)
	if !h.checkTemplate(w, tpl) {
		return
	}
	created, err := h.Store.Create(r.Context(), tpl)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.invalidate(r, shopDomain)
	h.countMutation("create")
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateTemplate replaces an existing template definition.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	shopDomain, id, ok := h.shopAndID(w, r)
	if !ok {
		return
	}
	payload, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	tpl := payload.toTemplate(shopDomain)
	tpl.ID = id
	if !h.checkTemplate(w, tpl) {
		return
	}
	updated, err := h.Store.Update(r.Context(), tpl)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.invalidate(r, shopDomain)
	h.countMutation("update")
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// GetTemplate returns a single template by id.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	shopDomain, id, ok := h.shopAndID(w, r)
	if !ok {
		return
	}
	tpl, err := h.Store.GetByID(r.Context(), shopDomain, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tpl})
}

// ListTemplates returns the shop's templates with pagination.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	templates, total, err := h.Store.List(r.Context(), shopDomain, perPage, (page-1)*perPage)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": templates,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// DeleteTemplate removes a template and its assignments.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	shopDomain, id, ok := h.shopAndID(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), shopDomain, id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.invalidate(r, shopDomain)
	h.countMutation("delete")
	w.WriteHeader(http.StatusNoContent)
}

// ActivateTemplate enables a template for quoting.
func (h *Handler) ActivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateTemplate disables a template without deleting it.
func (h *Handler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	shopDomain, id, ok := h.shopAndID(w, r)
	if !ok {
		return
	}
	tpl, err := h.Store.SetActive(r.Context(), shopDomain, id, active)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.invalidate(r, shopDomain)
	if active {
		h.countMutation("activate")
	} else {
		h.countMutation("deactivate")
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tpl})
}

// ValidateFormula runs the static formula checks without saving anything.
func (h *Handler) ValidateFormula(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Formula   string   `json:"formula"`
		FieldKeys []string `json:"fieldKeys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result := formula.Validate(payload.Formula, payload.FieldKeys)
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// TestFormula evaluates a formula against sample bindings for the preview pane.
func (h *Handler) TestFormula(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Formula  string             `json:"formula"`
		Bindings map[string]float64 `json:"bindings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	value, err := formula.Evaluate(payload.Formula, payload.Bindings)
	if err != nil {
		var fErr *formula.Error
		if errors.As(err, &fErr) {
			common.JSONError(w, http.StatusUnprocessableEntity, fErr.Code, fErr.Message, map[string]any{"token": fErr.Token})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to evaluate formula", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"result": value}})
}

// Collisions reports templates whose scopes overlap. With ?cached=true the
// last scan report from Redis is served instead of recomputing.
func (h *Handler) Collisions(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	if r.URL.Query().Get("cached") == "true" {
		if report, found, err := h.Cache.GetCollisionReport(r.Context(), shopDomain); err == nil && found {
			common.JSON(w, http.StatusOK, map[string]any{"data": report, "cached": true})
			return
		}
	}
	templates, err := h.Store.ListActive(r.Context(), shopDomain)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	groups := pricing.DetectCollisions(templates)
	common.JSON(w, http.StatusOK, map[string]any{"data": groups, "cached": false})
}

// UpsertAssignment sets or replaces a product's template assignment priority.
func (h *Handler) UpsertAssignment(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	var payload struct {
		TemplateID string `json:"templateId"`
		ProductID  string `json:"productId"`
		Priority   int    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	templateID, err := uuid.Parse(payload.TemplateID)
	if err != nil || strings.TrimSpace(payload.ProductID) == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "templateId and productId are required", nil)
		return
	}
	assignment, err := h.Store.UpsertAssignment(r.Context(), template.Assignment{
		ShopDomain: shopDomain,
		TemplateID: templateID,
		ProductID:  strings.TrimSpace(payload.ProductID),
		Priority:   payload.Priority,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.invalidate(r, shopDomain)
	h.countMutation("assign")
	common.JSON(w, http.StatusOK, map[string]any{"data": assignment})
}

func (h *Handler) decodeTemplate(w http.ResponseWriter, r *http.Request) (templatePayload, bool) {
	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return templatePayload{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", validationDetails(err))
			return templatePayload{}, false
		}
	}
	return payload, true
}

// checkTemplate enforces the structural invariants and gates persistence on a
// clean formula validation.
func (h *Handler) checkTemplate(w http.ResponseWriter, tpl template.Template) bool {
	if err := tpl.Validate(); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return false
	}
	result := formula.Validate(tpl.PricingFormula, tpl.FormulaFieldKeys())
	if !result.Valid {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_FORMULA", "the pricing formula failed validation", map[string]any{
			"errors":   result.Errors,
			"warnings": result.Warnings,
		})
		return false
	}
	return true
}

func (h *Handler) shopAndID(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid template id", nil)
		return "", uuid.Nil, false
	}
	return shopDomain, id, true
}

func (h *Handler) invalidate(r *http.Request, shopDomain string) {
	if err := h.Cache.Invalidate(r.Context(), shopDomain); err != nil {
		h.Log.Warn().Err(err).Str("shop", shopDomain).Msg("snapshot invalidation failed")
	}
}

func (h *Handler) countMutation(action string) {
	if obs.TemplateMutationsTotal != nil {
		obs.TemplateMutationsTotal.WithLabelValues(action).Inc()
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, template.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "template not found", nil)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		common.JSONError(w, http.StatusConflict, "CONFLICT", "a conflicting record already exists", nil)
	default:
		h.Log.Error().Err(err).Msg("template store operation failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "storage operation failed", nil)
	}
}

func validationDetails(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	details := make([]map[string]string, 0, len(invalid))
	for _, fe := range invalid {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return details
}
