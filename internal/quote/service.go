package quote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/priceform/backend-pricing/internal/formula"
	"github.com/priceform/backend-pricing/internal/obs"
	"github.com/priceform/backend-pricing/internal/pricing"
	"github.com/priceform/backend-pricing/internal/template"
)

// Request carries everything the public quote endpoint needs to price a line.
type Request struct {
	Product     pricing.ProductScope
	TemplateID  *uuid.UUID
	FieldValues map[string]pricing.Value
	Quantity    int
	BasePrice   float64
	IsExpress   bool
}

// Service resolves the governing template for a product and prices it.
type Service struct {
	Loader template.Loader
	Log    zerolog.Logger
}

// Resolve returns the template that would govern the product, without pricing it.
func (s *Service) Resolve(ctx context.Context, shopDomain string, product pricing.ProductScope) (template.Template, error) {
	templates, err := s.Loader.ActiveTemplates(ctx, shopDomain)
	if err != nil {
		return template.Template{}, err
	}
	tpl, ok := pricing.Resolve(templates, product)
	if !ok {
		return template.Template{}, pricing.ErrTemplateNotFound
	}
	return tpl, nil
}

// Quote resolves the template (or honours an explicit template id) and runs
// the price calculation.
func (s *Service) Quote(ctx context.Context, shopDomain string, req Request) (pricing.Result, error) {
	start := time.Now()
	result, err := s.quote(ctx, shopDomain, req)
	elapsed := float64(time.Since(start).Milliseconds())
	outcome := "ok"
	if err != nil {
		outcome = classify(err)
	}
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(outcome).Inc()
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.WithLabelValues(outcome).Observe(elapsed)
	}
	if err != nil && outcome == "error" {
		s.Log.Error().Err(err).Str("shop", shopDomain).Str("product", req.Product.ProductID).Msg("quote failed")
	}
	return result, err
}

func (s *Service) quote(ctx context.Context, shopDomain string, req Request) (pricing.Result, error) {
	var tpl template.Template
	if req.TemplateID != nil {
		found, err := s.Loader.Store.GetByID(ctx, shopDomain, *req.TemplateID)
		if err != nil {
			if errors.Is(err, template.ErrNotFound) {
				return pricing.Result{}, pricing.ErrTemplateNotFound
			}
			return pricing.Result{}, err
		}
		tpl = found
	} else {
		resolved, err := s.Resolve(ctx, shopDomain, req.Product)
		if err != nil {
			return pricing.Result{}, err
		}
		tpl = resolved
	}

	result, err := pricing.Calculate(tpl, pricing.Input{
		FieldValues: req.FieldValues,
		Quantity:    req.Quantity,
		BasePrice:   req.BasePrice,
		IsExpress:   req.IsExpress,
	})
	if obs.FormulaEvaluationsTotal != nil {
		if err != nil {
			obs.FormulaEvaluationsTotal.WithLabelValues("error").Inc()
		} else {
			obs.FormulaEvaluationsTotal.WithLabelValues("ok").Inc()
		}
	}
	return result, err
}

func classify(err error) string {
	var reqErr *pricing.RequiredFieldsError
	var optErr *pricing.OptionError
	var qtyErr *pricing.QuantityError
	switch {
	case errors.Is(err, pricing.ErrTemplateNotFound):
		return "no_template"
	case errors.Is(err, pricing.ErrTemplateInactive):
		return "inactive"
	case errors.As(err, &reqErr), errors.As(err, &optErr), errors.As(err, &qtyErr):
		return "invalid_input"
	case formula.IsFormulaError(err):
		return "formula_error"
	default:
		return "error"
	}
}
