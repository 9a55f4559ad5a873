package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/priceform/backend-pricing/internal/common"
	"github.com/priceform/backend-pricing/internal/formula"
	"github.com/priceform/backend-pricing/internal/pricing"
	"github.com/priceform/backend-pricing/internal/shop"
	"github.com/priceform/backend-pricing/internal/template"
)

// Handler exposes the public quoting endpoints consumed by storefront widgets.
type Handler struct {
	Svc *Service
}

type productPayload struct {
	ProductID     string   `json:"productId"`
	Vendor        string   `json:"vendor"`
	Tags          []string `json:"tags"`
	CollectionIDs []string `json:"collectionIds"`
}

type quotePayload struct {
	Product     productPayload `json:"product"`
	TemplateID  string         `json:"templateId"`
	FieldValues map[string]any `json:"fieldValues"`
	Quantity    int            `json:"quantity"`
	BasePrice   float64        `json:"basePrice"`
	IsExpress   bool           `json:"isExpress"`
}

// Quote prices a single product line for the resolved shop.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	var payload quotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, err := h.Svc.Quote(r.Context(), shopDomain, req)
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Resolve returns the template that governs a product without pricing it.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	shopDomain, ok := shop.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shop could not be resolved", nil)
		return
	}
	var payload struct {
		Product productPayload `json:"product"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(payload.Product.ProductID) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product.productId is required", nil)
		return
	}
	tpl, err := h.Svc.Resolve(r.Context(), shopDomain, payload.Product.toScope())
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tpl})
}

func (p productPayload) toScope() pricing.ProductScope {
	return pricing.ProductScope{
		ProductID:     strings.TrimSpace(p.ProductID),
		Vendor:        strings.TrimSpace(p.Vendor),
		Tags:          p.Tags,
		CollectionIDs: p.CollectionIDs,
	}
}

func (p quotePayload) toRequest() (Request, error) {
	req := Request{
		Product:   p.Product.toScope(),
		Quantity:  p.Quantity,
		BasePrice: p.BasePrice,
		IsExpress: p.IsExpress,
	}
	if p.TemplateID != "" {
		id, err := uuid.Parse(p.TemplateID)
		if err != nil {
			return Request{}, errors.New("templateId is not a valid uuid")
		}
		req.TemplateID = &id
	} else if req.Product.ProductID == "" {
		return Request{}, errors.New("product.productId is required")
	}
	if p.BasePrice < 0 {
		return Request{}, errors.New("basePrice must not be negative")
	}
	if len(p.FieldValues) > 0 {
		req.FieldValues = make(map[string]pricing.Value, len(p.FieldValues))
		for key, raw := range p.FieldValues {
			value, ok := pricing.ValueFromJSON(raw)
			if !ok {
				return Request{}, errors.New("fieldValues." + key + " has an unsupported type")
			}
			req.FieldValues[key] = value
		}
	}
	return req, nil
}

func writeQuoteError(w http.ResponseWriter, err error) {
	var reqErr *pricing.RequiredFieldsError
	var optErr *pricing.OptionError
	var qtyErr *pricing.QuantityError
	var fErr *formula.Error
	switch {
	case errors.Is(err, pricing.ErrTemplateNotFound), errors.Is(err, template.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no pricing template covers this product", nil)
	case errors.Is(err, pricing.ErrTemplateInactive):
		common.JSONError(w, http.StatusConflict, "TEMPLATE_INACTIVE", "the selected template is not active", nil)
	case errors.As(err, &reqErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "MISSING_FIELDS", "required fields are missing", map[string]any{"fields": reqErr.Keys})
	case errors.As(err, &optErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_OPTION", optErr.Error(), map[string]any{"field": optErr.FieldKey, "option": optErr.Option})
	case errors.As(err, &qtyErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "QUANTITY_OUT_OF_RANGE", qtyErr.Error(), map[string]any{"quantity": qtyErr.Quantity, "limit": qtyErr.Limit})
	case errors.As(err, &fErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "CALCULATION_FAILED", fErr.Message, map[string]any{"code": fErr.Code})
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to produce a quote", nil)
	}
}
