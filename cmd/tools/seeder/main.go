package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/priceform/backend-pricing/internal/template"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	shopDomain := os.Getenv("SEED_SHOP_DOMAIN")
	if shopDomain == "" {
		shopDomain = "demo.myshopify.com"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	store := template.NewStore(pool)
	log.Printf("Seeding pricing templates for %s...", shopDomain)

	created := 0
	for _, tpl := range demoTemplates(shopDomain) {
		if err := tpl.Validate(); err != nil {
			log.Fatalf("Invalid seed template %q: %v", tpl.Name, err)
		}
		saved, err := store.Create(ctx, tpl)
		if err != nil {
			log.Fatalf("Failed to create template %q: %v", tpl.Name, err)
		}
		log.Printf("  created %s (%s)", saved.Name, saved.ID)
		created++
	}

	log.Printf("Seeding completed successfully! (%d templates)", created)
}

func demoTemplates(shopDomain string) []template.Template {
	five := 5
	hundred := 100
	return []template.Template{
		{
			ShopDomain:     shopDomain,
			Name:           "Banner pricing by area",
			PricingFormula: "base_price + width * height * 0.05",
			ScopeType:      template.ScopeTag,
			ScopeValues:    []string{"banner"},
			Fields: []template.Field{
				{Key: "width", Label: "Width (cm)", Type: template.FieldNumber, Required: true, UseInFormula: true},
				{Key: "height", Label: "Height (cm)", Type: template.FieldNumber, Required: true, UseInFormula: true},
				{Key: "notes", Label: "Production notes", Type: template.FieldText},
			},
			IsActive:          true,
			HasExpressOption:  true,
			ExpressMultiplier: 1.5,
			ExpressLabel:      "Express production",
			DiscountTiers: []template.DiscountTier{
				{MinQty: 5, MaxQty: intp(9), Discount: 10},
				{MinQty: 10, Discount: 20},
			},
		},
		{
			ShopDomain:     shopDomain,
			Name:           "Business card pricing",
			PricingFormula: "base_price + paper + finish",
			ScopeType:      template.ScopeTag,
			ScopeValues:    []string{"business-card"},
			Fields: []template.Field{
				{Key: "paper", Label: "Paper stock", Type: template.FieldSelect, Required: true, UseInFormula: true, Options: []template.FieldOption{
					{Value: "standard", Label: "Standard 300gsm", PriceDelta: 0},
					{Value: "premium", Label: "Premium 400gsm", PriceDelta: 4.5},
				}},
				{Key: "finish", Label: "Matte finish", Type: template.FieldCheckbox, UseInFormula: true, Options: []template.FieldOption{
					{Value: "matte", Label: "Matte lamination", PriceDelta: 2},
				}},
			},
			IsActive:           true,
			MinQuantity:        &five,
			MinQuantityMessage: "Business cards ship in batches of five or more",
			MaxQuantity:        &hundred,
		},
		{
			ShopDomain:     shopDomain,
			Name:           "Storewide markup",
			PricingFormula: "round(base_price * 1.1)",
			ScopeType:      template.ScopeGlobal,
			IsActive:       true,
		},
	}
}

func intp(v int) *int { return &v }
