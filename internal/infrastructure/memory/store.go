package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
)

// Store persistencia en memoria (DB_DRIVER=memory y tests). Un solo mutex para todas las tablas:
// las transiciones condicionales son atómicas igual que el UPDATE ... WHERE status = 'pending'.
type Store struct {
	mu            sync.Mutex
	licenses      map[string]*entity.License
	licenseOrders map[string]*entity.LicenseOrder
	accessOrders  map[string]*entity.AccessOrder
	users         map[string]*entity.User
	now           func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		licenses:      make(map[string]*entity.License),
		licenseOrders: make(map[string]*entity.LicenseOrder),
		accessOrders:  make(map[string]*entity.AccessOrder),
		users:         make(map[string]*entity.User),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Licenses repositorio de licencias.
func (s *Store) Licenses() *LicenseRepo { return &LicenseRepo{s: s} }

// LicenseOrders repositorio de órdenes de renovación.
func (s *Store) LicenseOrders() *LicenseOrderRepo { return &LicenseOrderRepo{s: s} }

// AccessOrders repositorio de órdenes de acceso.
func (s *Store) AccessOrders() *AccessOrderRepo { return &AccessOrderRepo{s: s} }

// Users repositorio de usuarios.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

var (
	_ repository.LicenseRepository      = (*LicenseRepo)(nil)
	_ repository.LicenseOrderRepository = (*LicenseOrderRepo)(nil)
	_ repository.AccessOrderRepository  = (*AccessOrderRepo)(nil)
	_ repository.UserRepository         = (*UserRepo)(nil)
)

// ── Licencias ────────────────────────────────────────────────────────────────

// LicenseRepo implementación en memoria de LicenseRepository.
type LicenseRepo struct{ s *Store }

func (r *LicenseRepo) Create(_ context.Context, l *entity.License) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.licenses {
		if existing.Key == l.Key {
			return domain.ErrDuplicate
		}
	}
	cp := *l
	r.s.licenses[l.ID] = &cp
	return nil
}

func (r *LicenseRepo) GetByID(_ context.Context, id string) (*entity.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.licenses[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *LicenseRepo) GetByKey(_ context.Context, key string) (*entity.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.licenses {
		if l.Key == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *LicenseRepo) List(_ context.Context, limit, offset int) ([]*entity.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]*entity.License, 0, len(r.s.licenses))
	for _, l := range r.s.licenses {
		cp := *l
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *LicenseRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = r.s.now()
	return nil
}

func (r *LicenseRepo) Extend(_ context.Context, id string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.ExpiresAt = expiresAt
	l.Status = entity.LicenseActive
	l.UpdatedAt = r.s.now()
	return nil
}

func (r *LicenseRepo) UpdateUserCount(_ context.Context, id string, count int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.licenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.CurrentUserCount = count
	return nil
}

// ── Órdenes de renovación ────────────────────────────────────────────────────

// LicenseOrderRepo implementación en memoria de LicenseOrderRepository.
type LicenseOrderRepo struct{ s *Store }

func (r *LicenseOrderRepo) Create(_ context.Context, o *entity.LicenseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.licenseOrders {
		if existing.TransactionID == o.TransactionID {
			return domain.ErrDuplicate
		}
	}
	cp := *o
	cp.License = nil
	r.s.licenseOrders[o.ID] = &cp
	return nil
}

func (r *LicenseOrderRepo) GetByID(_ context.Context, id string) (*entity.LicenseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.licenseOrders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *LicenseOrderRepo) GetByTransactionID(_ context.Context, transactionID string) (*entity.LicenseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.licenseOrders {
		if o.TransactionID == transactionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *LicenseOrderRepo) GetByCheckoutID(_ context.Context, checkoutID string) (*entity.LicenseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.licenseOrders {
		if o.CheckoutID != "" && o.CheckoutID == checkoutID {
			cp := *o
			if l, ok := r.s.licenses[o.LicenseID]; ok {
				lc := *l
				cp.License = &lc
			}
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *LicenseOrderRepo) SetCheckoutID(_ context.Context, id, checkoutID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.licenseOrders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.CheckoutID = checkoutID
	o.UpdatedAt = r.s.now()
	return nil
}

func (r *LicenseOrderRepo) Complete(_ context.Context, id, receipt string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.licenseOrders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != entity.OrderPending {
		return false, nil
	}
	o.Status = entity.OrderCompleted
	o.ReceiptNumber = receipt
	o.UpdatedAt = r.s.now()
	return true, nil
}

func (r *LicenseOrderRepo) Fail(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.licenseOrders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != entity.OrderPending {
		return false, nil
	}
	o.Status = entity.OrderFailed
	o.UpdatedAt = r.s.now()
	return true, nil
}

func (r *LicenseOrderRepo) ListRecentByLicense(_ context.Context, licenseID string, limit int) ([]*entity.LicenseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.LicenseOrder
	for _, o := range r.s.licenseOrders {
		if o.LicenseID == licenseID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

// ── Órdenes de acceso ────────────────────────────────────────────────────────

// AccessOrderRepo implementación en memoria de AccessOrderRepository.
type AccessOrderRepo struct{ s *Store }

func (r *AccessOrderRepo) Create(_ context.Context, o *entity.AccessOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accessOrders {
		if existing.TransactionID == o.TransactionID {
			return domain.ErrDuplicate
		}
	}
	cp := *o
	r.s.accessOrders[o.ID] = &cp
	return nil
}

func (r *AccessOrderRepo) GetByTransactionID(_ context.Context, transactionID string) (*entity.AccessOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.accessOrders {
		if o.TransactionID == transactionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *AccessOrderRepo) GetByCheckoutID(_ context.Context, checkoutID string) (*entity.AccessOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.accessOrders {
		if o.CheckoutID != "" && o.CheckoutID == checkoutID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *AccessOrderRepo) SetCheckoutID(_ context.Context, id, checkoutID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.accessOrders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.CheckoutID = checkoutID
	o.UpdatedAt = r.s.now()
	return nil
}

func (r *AccessOrderRepo) Complete(_ context.Context, id, receipt string, grantedUntil time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.accessOrders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != entity.OrderPending {
		return false, nil
	}
	until := grantedUntil
	o.Status = entity.OrderCompleted
	o.ReceiptNumber = receipt
	o.GrantedUntil = &until
	o.UpdatedAt = r.s.now()
	return true, nil
}

func (r *AccessOrderRepo) Fail(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.accessOrders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != entity.OrderPending {
		return false, nil
	}
	o.Status = entity.OrderFailed
	o.UpdatedAt = r.s.now()
	return true, nil
}

// ── Usuarios ─────────────────────────────────────────────────────────────────

// UserRepo implementación en memoria de UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailAlreadyExists
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) List(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *UserRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
