package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a template does not exist for the shop.
	ErrNotFound = errors.New("template: not found")
	// ErrStoreUnavailable indicates the store dependency is not configured.
	ErrStoreUnavailable = errors.New("template: store unavailable")
)

// Store provides persistence for templates and assignments.
type Store interface {
	Create(ctx context.Context, tpl Template) (Template, error)
	Update(ctx context.Context, tpl Template) (Template, error)
	GetByID(ctx context.Context, shopDomain string, id uuid.UUID) (Template, error)
	List(ctx context.Context, shopDomain string, limit, offset int) ([]Template, int64, error)
	Delete(ctx context.Context, shopDomain string, id uuid.UUID) error
	SetActive(ctx context.Context, shopDomain string, id uuid.UUID, active bool) (Template, error)
	ListActive(ctx context.Context, shopDomain string) ([]Template, error)
	UpsertAssignment(ctx context.Context, a Assignment) (Assignment, error)
	ListShopDomains(ctx context.Context) ([]string, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const templateColumns = `id, shop_domain, name, pricing_formula, scope_type, scope_values,
fields, is_active, has_express_option, express_multiplier, express_label,
min_quantity, max_quantity, min_quantity_message, max_quantity_message,
discount_tiers, created_at, updated_at`

func (s *pgStore) Create(ctx context.Context, tpl Template) (Template, error) {
	if s == nil || s.pool == nil {
		return Template{}, ErrStoreUnavailable
	}
	fields, tiers, err := marshalTemplateJSON(tpl)
	if err != nil {
		return Template{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO pricing_templates
(shop_domain, name, pricing_formula, scope_type, scope_values, fields, is_active,
 has_express_option, express_multiplier, express_label,
 min_quantity, max_quantity, min_quantity_message, max_quantity_message, discount_tiers)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING `+templateColumns,
		tpl.ShopDomain, tpl.Name, tpl.PricingFormula, string(tpl.ScopeType), tpl.ScopeValues,
		fields, tpl.IsActive, tpl.HasExpressOption, tpl.ExpressMultiplier, tpl.ExpressLabel,
		tpl.MinQuantity, tpl.MaxQuantity, tpl.MinQuantityMessage, tpl.MaxQuantityMessage, tiers)
	return scanTemplate(row)
}

func (s *pgStore) Update(ctx context.Context, tpl Template) (Template, error) {
	if s == nil || s.pool == nil {
		return Template{}, ErrStoreUnavailable
	}
	fields, tiers, err := marshalTemplateJSON(tpl)
	if err != nil {
		return Template{}, err
	}
	row := s.pool.QueryRow(ctx, `UPDATE pricing_templates SET
name = $3, pricing_formula = $4, scope_type = $5, scope_values = $6, fields = $7,
is_active = $8, has_express_option = $9, express_multiplier = $10, express_label = $11,
min_quantity = $12, max_quantity = $13, min_quantity_message = $14, max_quantity_message = $15,
discount_tiers = $16, updated_at = now()
WHERE shop_domain = $1 AND id = $2
RETURNING `+templateColumns,
		tpl.ShopDomain, tpl.ID, tpl.Name, tpl.PricingFormula, string(tpl.ScopeType), tpl.ScopeValues,
		fields, tpl.IsActive, tpl.HasExpressOption, tpl.ExpressMultiplier, tpl.ExpressLabel,
		tpl.MinQuantity, tpl.MaxQuantity, tpl.MinQuantityMessage, tpl.MaxQuantityMessage, tiers)
	updated, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return updated, err
}

func (s *pgStore) GetByID(ctx context.Context, shopDomain string, id uuid.UUID) (Template, error) {
	if s == nil || s.pool == nil {
		return Template{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+`, 0 AS priority
FROM pricing_templates WHERE shop_domain = $1 AND id = $2`, shopDomain, id)
	tpl, err := scanTemplateWithPriority(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return tpl, err
}

func (s *pgStore) List(ctx context.Context, shopDomain string, limit, offset int) ([]Template, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+`
FROM pricing_templates WHERE shop_domain = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, shopDomain, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pricing_templates WHERE shop_domain = $1`, shopDomain).Scan(&total); err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func (s *pgStore) Delete(ctx context.Context, shopDomain string, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM pricing_templates WHERE shop_domain = $1 AND id = $2`, shopDomain, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) SetActive(ctx context.Context, shopDomain string, id uuid.UUID, active bool) (Template, error) {
	if s == nil || s.pool == nil {
		return Template{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE pricing_templates SET is_active = $3, updated_at = now()
WHERE shop_domain = $1 AND id = $2
RETURNING `+templateColumns, shopDomain, id, active)
	tpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return tpl, err
}

// ListActive returns the shop's active templates with the assignment-resolved
// priority folded in, newest first within equal priority.
func (s *pgStore) ListActive(ctx context.Context, shopDomain string) ([]Template, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT t.id, t.shop_domain, t.name, t.pricing_formula, t.scope_type, t.scope_values,
t.fields, t.is_active, t.has_express_option, t.express_multiplier, t.express_label,
t.min_quantity, t.max_quantity, t.min_quantity_message, t.max_quantity_message,
t.discount_tiers, t.created_at, t.updated_at,
COALESCE(MAX(a.priority), 0) AS priority
FROM pricing_templates t
LEFT JOIN template_assignments a ON a.template_id = t.id
WHERE t.shop_domain = $1 AND t.is_active
GROUP BY t.id
ORDER BY priority DESC, t.created_at DESC`, shopDomain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		tpl, err := scanTemplateWithPriority(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func (s *pgStore) UpsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if s == nil || s.pool == nil {
		return Assignment{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO template_assignments (shop_domain, template_id, product_id, priority)
VALUES ($1, $2, $3, $4)
ON CONFLICT (template_id, product_id) DO UPDATE SET priority = EXCLUDED.priority
RETURNING id, shop_domain, template_id, product_id, priority, created_at`,
		a.ShopDomain, a.TemplateID, a.ProductID, a.Priority)
	var out Assignment
	if err := row.Scan(&out.ID, &out.ShopDomain, &out.TemplateID, &out.ProductID, &out.Priority, &out.CreatedAt); err != nil {
		return Assignment{}, err
	}
	return out, nil
}

// ListShopDomains returns every shop that has at least one active template.
// The collision scan worker fans out over this list.
func (s *pgStore) ListShopDomains(ctx context.Context) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT shop_domain FROM pricing_templates WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shops []string
	for rows.Next() {
		var shop string
		if err := rows.Scan(&shop); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func marshalTemplateJSON(tpl Template) (fields, tiers []byte, err error) {
	fields, err = json.Marshal(tpl.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal fields: %w", err)
	}
	tiers, err = json.Marshal(tpl.DiscountTiers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal discount tiers: %w", err)
	}
	return fields, tiers, nil
}

func scanTemplate(row pgx.Row) (Template, error) {
	var (
		tpl       Template
		scopeType string
		fields    []byte
		tiers     []byte
	)
	err := row.Scan(&tpl.ID, &tpl.ShopDomain, &tpl.Name, &tpl.PricingFormula, &scopeType, &tpl.ScopeValues,
		&fields, &tpl.IsActive, &tpl.HasExpressOption, &tpl.ExpressMultiplier, &tpl.ExpressLabel,
		&tpl.MinQuantity, &tpl.MaxQuantity, &tpl.MinQuantityMessage, &tpl.MaxQuantityMessage,
		&tiers, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	return finishScan(tpl, scopeType, fields, tiers)
}

func scanTemplateWithPriority(row pgx.Row) (Template, error) {
	var (
		tpl       Template
		scopeType string
		fields    []byte
		tiers     []byte
	)
	err := row.Scan(&tpl.ID, &tpl.ShopDomain, &tpl.Name, &tpl.PricingFormula, &scopeType, &tpl.ScopeValues,
		&fields, &tpl.IsActive, &tpl.HasExpressOption, &tpl.ExpressMultiplier, &tpl.ExpressLabel,
		&tpl.MinQuantity, &tpl.MaxQuantity, &tpl.MinQuantityMessage, &tpl.MaxQuantityMessage,
		&tiers, &tpl.CreatedAt, &tpl.UpdatedAt, &tpl.Priority)
	if err != nil {
		return Template{}, err
	}
	return finishScan(tpl, scopeType, fields, tiers)
}

func finishScan(tpl Template, scopeType string, fields, tiers []byte) (Template, error) {
	tpl.ScopeType = ScopeType(scopeType)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
			return Template{}, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &tpl.DiscountTiers); err != nil {
			return Template{}, fmt.Errorf("unmarshal discount tiers: %w", err)
		}
	}
	return tpl, nil
}
