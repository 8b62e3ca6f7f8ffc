//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
)

// -----------------------------
// In-memory store shared by the tenant and proof repos
// -----------------------------

type memStore struct {
	mu      sync.Mutex
	txMu    sync.Mutex // held for a whole transaction by serialTx
	tenants map[string]*model.Tenant
	proofs  map[string]*model.PaymentProof
	users   map[string]model.UserSummary
}

func newMemStore() *memStore {
	return &memStore{
		tenants: map[string]*model.Tenant{},
		proofs:  map[string]*model.PaymentProof{},
		users:   map[string]model.UserSummary{},
	}
}

func cloneTenant(t *model.Tenant) *model.Tenant {
	cp := *t
	return &cp
}

func cloneProof(p *model.PaymentProof) *model.PaymentProof {
	cp := *p
	return &cp
}

func (s *memStore) snapshot() (map[string]*model.Tenant, map[string]*model.PaymentProof) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := make(map[string]*model.Tenant, len(s.tenants))
	for k, v := range s.tenants {
		ts[k] = cloneTenant(v)
	}
	ps := make(map[string]*model.PaymentProof, len(s.proofs))
	for k, v := range s.proofs {
		ps[k] = cloneProof(v)
	}
	return ts, ps
}

func (s *memStore) restore(ts map[string]*model.Tenant, ps map[string]*model.PaymentProof) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants, s.proofs = ts, ps
}

// ---- Tenant repo ----

type memTenantRepo struct {
	s       *memStore
	SaveErr error
}

var _ repository.TenantRepository = (*memTenantRepo)(nil)

func (r *memTenantRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tenants {
		if existing.Slug == t.Slug {
			return domain.ErrSlugTaken
		}
	}
	r.s.tenants[t.ID] = cloneTenant(t)
	return nil
}

func (r *memTenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	if err := t.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[t.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	r.s.tenants[t.ID] = cloneTenant(t)
	return nil
}

func (r *memTenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return cloneTenant(t), nil
}

func (r *memTenantRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *memTenantRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		out = append(out, cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- Payment proof repo ----

type memProofRepo struct {
	s *memStore
	// skipExistsCheck makes ExistsByTrxID always report false so the
	// unique-index path in Create is exercised.
	skipExistsCheck bool
}

var _ repository.PaymentProofRepository = (*memProofRepo)(nil)

func (r *memProofRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentProof) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[p.TenantID]; !ok {
		return domain.ErrTenantNotFound
	}
	for _, existing := range r.s.proofs {
		if existing.TrxID == p.TrxID {
			return domain.ErrDuplicateTransaction
		}
	}
	r.s.proofs[p.ID] = cloneProof(p)
	return nil
}

func (r *memProofRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proofs[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return cloneProof(p), nil
}

func (r *memProofRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentProof, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *memProofRepo) ExistsByTrxID(ctx context.Context, tx repository.Tx, trxID string) (bool, error) {
	if r.skipExistsCheck {
		return false, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.proofs {
		if p.TrxID == trxID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProofRepo) Resolve(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, verifierID string, at time.Time, note string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proofs[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.VerifiedBy = &verifierID
	p.VerifiedAt = &at
	p.Note = note
	p.UpdatedAt = at
	return true, nil
}

func (r *memProofRepo) LatestByTenant(ctx context.Context, tx repository.Tx, tenantIDs []string) (map[string]*model.PaymentProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range tenantIDs {
		want[id] = true
	}
	out := map[string]*model.PaymentProof{}
	for _, p := range r.s.proofs {
		if tenantIDs != nil && !want[p.TenantID] {
			continue
		}
		cur, ok := out[p.TenantID]
		if !ok || p.CreatedAt.After(cur.CreatedAt) || (p.CreatedAt.Equal(cur.CreatedAt) && p.ID > cur.ID) {
			out[p.TenantID] = cloneProof(p)
		}
	}
	return out, nil
}

func (r *memProofRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*repository.PaymentListItem, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(f.Query)
	var all []*repository.PaymentListItem
	for _, p := range r.s.proofs {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		t := r.s.tenants[p.TenantID]
		if q != "" && !strings.Contains(strings.ToLower(p.TrxID), q) &&
			!strings.Contains(p.SenderNumber, q) &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Slug), q) {
			continue
		}
		item := &repository.PaymentListItem{
			Proof:  cloneProof(p),
			Tenant: repository.TenantRef{ID: t.ID, Name: t.Name, Slug: t.Slug},
		}
		if p.SubmittedBy != nil {
			if u, ok := r.s.users[*p.SubmittedBy]; ok {
				item.Submitter = &u
			}
		}
		if p.VerifiedBy != nil {
			if u, ok := r.s.users[*p.VerifiedBy]; ok {
				item.Verifier = &u
			}
		}
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Proof.CreatedAt.Equal(all[j].Proof.CreatedAt) {
			return all[i].Proof.ID > all[j].Proof.ID
		}
		return all[i].Proof.CreatedAt.After(all[j].Proof.CreatedAt)
	})
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r *memProofRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.PaymentStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[model.PaymentStatus]int{}
	for _, p := range r.s.proofs {
		out[p.Status]++
	}
	return out, nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// serialTx runs transactions one at a time against s and restores the
// previous state when fn fails, giving the in-memory repos commit/rollback.
func serialTx(s *memStore) func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		ts, ps := s.snapshot()
		if err := fn(ctx, repository.NoTX); err != nil {
			s.restore(ts, ps)
			return err
		}
		return nil
	}
}

// ---- Rate limiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{counts: map[string]int{}}
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// ---- Clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
