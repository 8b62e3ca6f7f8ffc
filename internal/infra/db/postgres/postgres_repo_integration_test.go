//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
)

func seedTenant(t *testing.T, repo *tenantRepo, name string, at time.Time) *model.Tenant {
	t.Helper()
	tn, err := model.NewTenant(name, "", at, 14)
	if err != nil {
		t.Fatalf("NewTenant: %v", err)
	}
	if err := repo.Create(context.Background(), nil, tn); err != nil {
		t.Fatalf("Create tenant: %v", err)
	}
	return tn
}

func TestTenantRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewTenantRepo(testPool)
	tm := NewTxManager(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("create, find and mirror legacy fields", func(t *testing.T) {
		cleanup(t)
		tn := seedTenant(t, repo, "Alpha Coaching", now)

		got, err := repo.FindByID(ctx, nil, tn.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Slug != "alpha-coaching" || got.Subscription.Status != model.SubscriptionStatusTrialActive {
			t.Fatalf("unexpected tenant: %+v", got)
		}

		var legacyStatus string
		var processed bool
		err = testPool.QueryRow(ctx, `SELECT legacy_subscription_status, legacy_payment_processed FROM tenants WHERE id=$1`, tn.ID).
			Scan(&legacyStatus, &processed)
		if err != nil {
			t.Fatalf("read legacy columns: %v", err)
		}
		if legacyStatus != "trial" || !processed {
			t.Fatalf("legacy mirror = %q/%v, want trial/true", legacyStatus, processed)
		}
	})

	t.Run("duplicate slug", func(t *testing.T) {
		cleanup(t)
		seedTenant(t, repo, "Beta", now)
		dup, _ := model.NewTenant("Beta", "", now, 14)
		if err := repo.Create(ctx, nil, dup); !errors.Is(err, domain.ErrSlugTaken) {
			t.Fatalf("expected ErrSlugTaken, got %v", err)
		}
	})

	t.Run("save refuses active without window", func(t *testing.T) {
		cleanup(t)
		tn := seedTenant(t, repo, "Gamma", now)
		tn.Subscription.Status = model.SubscriptionStatusActive
		if err := repo.Save(ctx, nil, tn); !errors.Is(err, domain.ErrActiveWithoutWindow) {
			t.Fatalf("expected ErrActiveWithoutWindow, got %v", err)
		}
	})

	t.Run("lock requires a transaction", func(t *testing.T) {
		cleanup(t)
		tn := seedTenant(t, repo, "Delta", now)
		if _, err := repo.LockByID(ctx, nil, tn.ID); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Fatalf("expected ErrInvalidExecContext, got %v", err)
		}
		err := tm.WithTx(ctx, repository.WriteTx, func(ctx context.Context, tx repository.Tx) error {
			_, err := repo.LockByID(ctx, tx, tn.ID)
			return err
		})
		if err != nil {
			t.Fatalf("LockByID in tx: %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrTenantNotFound) {
			t.Fatalf("expected ErrTenantNotFound, got %v", err)
		}
	})
}

func TestPaymentProofRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	tenants := NewTenantRepo(testPool)
	users := NewUserRepo(testPool)
	repo := NewPaymentProofRepo(testPool)
	tm := NewTxManager(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	newProof := func(tenantID, trx string, at time.Time) *model.PaymentProof {
		return model.NewPaymentProof(tenantID, "admin-1", model.ProviderBkash, decimal.NewFromInt(1200), "01700000000", trx, at)
	}

	t.Run("create, duplicate and find", func(t *testing.T) {
		cleanup(t)
		tn := seedTenant(t, tenants, "Alpha", now)
		p := newProof(tn.ID, "TRX1", now)
		if err := repo.Create(ctx, nil, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Create(ctx, nil, newProof(tn.ID, "TRX1", now)); !errors.Is(err, domain.ErrDuplicateTransaction) {
			t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
		}
		exists, err := repo.ExistsByTrxID(ctx, nil, "TRX1")
		if err != nil || !exists {
			t.Fatalf("ExistsByTrxID = %v, %v", exists, err)
		}
		got, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if !got.Amount.Equal(decimal.NewFromInt(1200)) || got.Status != model.PaymentStatusPending {
			t.Fatalf("unexpected proof: %+v", got)
		}
	})

	t.Run("resolve only once under contention", func(t *testing.T) {
		cleanup(t)
		tn := seedTenant(t, tenants, "Beta", now)
		p := newProof(tn.ID, "TRX2", now)
		if err := repo.Create(ctx, nil, p); err != nil {
			t.Fatalf("Create: %v", err)
		}

		var wg sync.WaitGroup
		results := make(chan bool, 2)
		for _, st := range []model.PaymentStatus{model.PaymentStatusVerified, model.PaymentStatusRejected} {
			wg.Add(1)
			go func(st model.PaymentStatus) {
				defer wg.Done()
				_ = tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
					ok, err := repo.Resolve(ctx, tx, p.ID, st, "super-1", now, "")
					if err != nil {
						return err
					}
					results <- ok
					return nil
				})
			}(st)
		}
		wg.Wait()
		close(results)

		won := 0
		for ok := range results {
			if ok {
				won++
			}
		}
		if won != 1 {
			t.Fatalf("expected exactly one winner, got %d", won)
		}
	})

	t.Run("latest per tenant and listing", func(t *testing.T) {
		cleanup(t)
		a := seedTenant(t, tenants, "Alpha Center", now)
		b := seedTenant(t, tenants, "Beta Center", now)
		if err := users.Save(ctx, nil, &repository.User{ID: "admin-1", Name: "Admin", Email: "admin@alpha.test", Role: model.RoleAdmin, TenantID: &a.ID}); err != nil {
			t.Fatalf("save user: %v", err)
		}

		old := newProof(a.ID, "OLD1", now.Add(-time.Hour))
		latest := newProof(a.ID, "NEW1", now)
		other := newProof(b.ID, "BX1", now)
		for _, p := range []*model.PaymentProof{old, latest, other} {
			if err := repo.Create(ctx, nil, p); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		byTenant, err := repo.LatestByTenant(ctx, nil, nil)
		if err != nil {
			t.Fatalf("LatestByTenant: %v", err)
		}
		if len(byTenant) != 2 || byTenant[a.ID].ID != latest.ID {
			t.Fatalf("unexpected latest map: %+v", byTenant)
		}
		only, err := repo.LatestByTenant(ctx, nil, []string{b.ID})
		if err != nil || len(only) != 1 || only[b.ID].ID != other.ID {
			t.Fatalf("LatestByTenant filtered = %+v, %v", only, err)
		}

		items, total, err := repo.List(ctx, nil, repository.PaymentFilter{Status: model.PaymentStatusPending, Query: "alpha", Limit: 1})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 2 || len(items) != 1 || items[0].Proof.ID != latest.ID {
			t.Fatalf("List = %d items, total %d", len(items), total)
		}
		if items[0].Tenant.Slug != "alpha-center" || items[0].Submitter == nil || items[0].Submitter.Email != "admin@alpha.test" {
			t.Fatalf("join data missing: %+v", items[0])
		}
		if items[0].Verifier != nil {
			t.Fatalf("verifier should be nil for pending proof")
		}

		_, total, err = repo.List(ctx, nil, repository.PaymentFilter{Query: "bx", Limit: 10})
		if err != nil || total != 1 {
			t.Fatalf("search by trx id: total %d, err %v", total, err)
		}

		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil || counts[model.PaymentStatusPending] != 3 {
			t.Fatalf("CountByStatus = %v, %v", counts, err)
		}
	})
}
