package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"coaching-subscription/internal/config"
	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
	"coaching-subscription/internal/infra/api"
	pg "coaching-subscription/internal/infra/db/postgres"
	"coaching-subscription/internal/infra/logging"
	"coaching-subscription/internal/usecase"
)

var (
	centerName = flag.String("center", "Demo Coaching Center", "name of the coaching center to seed")
	tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed dev tokens")
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	users := pg.NewUserRepo(pool)
	tenants := pg.NewTenantRepo(pool)
	policy := lifecycle.Policy{TrialDays: cfg.Subscription.TrialDays, TermDays: cfg.Subscription.TermDays}
	subUC := usecase.NewSubscriptionUseCase(tenants, pg.NewPaymentProofRepo(pool), tm, nil,
		usecase.SubscriptionSettings{Policy: policy, Dev: true}, nil, logger)

	// stable id so reseeding upserts the same super-admin row
	const saEmail = "superadmin@example.com"
	superAdmin := &repository.User{ID: uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+saEmail)).String(), Name: "Super Admin", Email: saEmail, Role: model.RoleSuperAdmin}
	if err := users.Save(ctx, repository.NoTX, superAdmin); err != nil {
		log.Fatalf("save super-admin: %v", err)
	}

	adminID := uuid.NewString()
	t, err := subUC.RegisterTenant(ctx, usecase.RegisterTenantInput{Name: *centerName, AdminID: adminID})
	if errors.Is(err, domain.ErrSlugTaken) {
		fmt.Printf("center %q already present. No changes.\n", *centerName)
		return
	}
	if err != nil {
		log.Fatalf("register center: %v", err)
	}

	admin := &repository.User{ID: adminID, Name: "Center Admin", Email: "admin+" + t.Slug + "@example.com", Role: model.RoleAdmin, TenantID: &t.ID}
	if err := users.Save(ctx, repository.NoTX, admin); err != nil {
		log.Fatalf("save admin: %v", err)
	}

	auth := api.NewAuthenticator(cfg.Auth.JWTSecret)
	saTok, err := auth.Mint(model.Principal{UserID: superAdmin.ID, Role: model.RoleSuperAdmin}, *tokenTTL)
	if err != nil {
		log.Fatalf("mint super-admin token: %v", err)
	}
	adTok, err := auth.Mint(model.Principal{UserID: admin.ID, Role: model.RoleAdmin, TenantID: t.ID}, *tokenTTL)
	if err != nil {
		log.Fatalf("mint admin token: %v", err)
	}

	fmt.Printf("seeded: %s (id=%s, slug=%s, trial ends %s)\n", t.Name, t.ID, t.Slug, t.Subscription.TrialEnd.Format(time.RFC3339))
	fmt.Printf("super-admin token:\n%s\n", saTok)
	fmt.Printf("center admin token:\n%s\n", adTok)
	fmt.Println("✅ Seeding complete.")
}
