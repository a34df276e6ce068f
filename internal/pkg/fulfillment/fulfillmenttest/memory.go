// Package fulfillmenttest provides an in-memory fulfillment.Repository with
// the same uniqueness and transaction semantics as the SQL schema.
package fulfillmenttest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
)

// ErrDuplicateKey mimics a unique index violation.
var ErrDuplicateKey = errors.New("duplicate key")

type state struct {
	nextID   uint
	payments map[string]models.Payment
	events   map[uint]models.Event
	tickets  map[string]models.Ticket
	users    map[uint]models.User
	movies   map[uint]models.Movie
	videos   map[string]models.PurchasedVideo
	plans    map[uint]models.StoragePlan
	credits  map[string]models.StorageCredit
	used     map[uint]int64
}

func newState() *state {
	return &state{
		payments: map[string]models.Payment{},
		events:   map[uint]models.Event{},
		tickets:  map[string]models.Ticket{},
		users:    map[uint]models.User{},
		movies:   map[uint]models.Movie{},
		videos:   map[string]models.PurchasedVideo{},
		plans:    map[uint]models.StoragePlan{},
		credits:  map[string]models.StorageCredit{},
		used:     map[uint]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.movies {
		c.movies[k] = v
	}
	for k, v := range s.videos {
		c.videos[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	for k, v := range s.used {
		c.used[k] = v
	}
	return c
}

func key(env, txID string) string { return env + "|" + txID }

// Repository is safe for concurrent use. Transactions are serialized and
// rolled back on error.
type Repository struct {
	mu sync.Mutex
	s  *state

	// FailCreateTicket makes CreateTicket fail, to exercise rollbacks.
	FailCreateTicket error
}

func NewRepository() *Repository {
	return &Repository{s: newState()}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx fulfillment.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	backup := r.s.clone()
	if err := fn(&txView{r: r}); err != nil {
		r.s = backup
		return err
	}
	return nil
}

func (r *Repository) locked() *txView {
	r.mu.Lock()
	return &txView{r: r}
}

func (r *Repository) CreatePendingPayment(ctx context.Context, p *models.Payment) (bool, *models.Payment, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.CreatePendingPayment(ctx, p)
}

func (r *Repository) FindPayment(ctx context.Context, env, txID string) (*models.Payment, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindPayment(ctx, env, txID)
}

func (r *Repository) TransitionPayment(ctx context.Context, env, txID, to, reason string) (bool, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.TransitionPayment(ctx, env, txID, to, reason)
}

func (r *Repository) SettledTransactionIDs(ctx context.Context, env string, ids []string) (map[string]struct{}, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.SettledTransactionIDs(ctx, env, ids)
}

func (r *Repository) FindEvent(ctx context.Context, id uint) (*models.Event, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindEvent(ctx, id)
}

func (r *Repository) DecrementTickets(ctx context.Context, eventID uint) (bool, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.DecrementTickets(ctx, eventID)
}

func (r *Repository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	v := r.locked()
	defer r.mu.Unlock()
	return v.CreateTicket(ctx, t)
}

func (r *Repository) FindTicket(ctx context.Context, env, txID string) (*models.Ticket, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindTicket(ctx, env, txID)
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindUserByEmail(ctx, email)
}

func (r *Repository) FindMovie(ctx context.Context, id uint) (*models.Movie, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindMovie(ctx, id)
}

func (r *Repository) CreatePurchasedVideo(ctx context.Context, pv *models.PurchasedVideo) error {
	v := r.locked()
	defer r.mu.Unlock()
	return v.CreatePurchasedVideo(ctx, pv)
}

func (r *Repository) FindPurchasedVideo(ctx context.Context, env, txID string) (*models.PurchasedVideo, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindPurchasedVideo(ctx, env, txID)
}

func (r *Repository) FindStoragePlan(ctx context.Context, id uint) (*models.StoragePlan, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindStoragePlan(ctx, id)
}

func (r *Repository) CreateStorageCredit(ctx context.Context, c *models.StorageCredit) error {
	v := r.locked()
	defer r.mu.Unlock()
	return v.CreateStorageCredit(ctx, c)
}

func (r *Repository) FindStorageCredit(ctx context.Context, env, txID string) (*models.StorageCredit, error) {
	v := r.locked()
	defer r.mu.Unlock()
	return v.FindStorageCredit(ctx, env, txID)
}

func (r *Repository) IncrementStorageUsed(ctx context.Context, userID uint, bytes int64) error {
	v := r.locked()
	defer r.mu.Unlock()
	return v.IncrementStorageUsed(ctx, userID, bytes)
}

// Seeding and inspection helpers.

func (r *Repository) AddEvent(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.events[e.ID] = e
}

func (r *Repository) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.users[u.ID] = u
}

func (r *Repository) AddMovie(m models.Movie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.movies[m.ID] = m
}

func (r *Repository) AddStoragePlan(p models.StoragePlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.plans[p.ID] = p
}

// AddPayment stores a payment as-is, e.g. to simulate existing local records.
func (r *Repository) AddPayment(p models.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.nextID++
	p.ID = r.s.nextID
	r.s.payments[key(p.Environment, p.TransactionID)] = p
}

func (r *Repository) Payments() []models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Payment, 0, len(r.s.payments))
	for _, p := range r.s.payments {
		out = append(out, p)
	}
	return out
}

func (r *Repository) Tickets() []models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Ticket, 0, len(r.s.tickets))
	for _, t := range r.s.tickets {
		out = append(out, t)
	}
	return out
}

func (r *Repository) Videos() []models.PurchasedVideo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PurchasedVideo, 0, len(r.s.videos))
	for _, v := range r.s.videos {
		out = append(out, v)
	}
	return out
}

func (r *Repository) Credits() []models.StorageCredit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.StorageCredit, 0, len(r.s.credits))
	for _, c := range r.s.credits {
		out = append(out, c)
	}
	return out
}

func (r *Repository) AvailableTickets(eventID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.events[eventID].AvailableTickets
}

func (r *Repository) StorageUsed(userID uint) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.used[userID]
}

// txView operates on the state with the repository lock already held.
type txView struct {
	r *Repository
}

func (v *txView) WithinTx(ctx context.Context, fn func(tx fulfillment.Repository) error) error {
	return fn(v)
}

func (v *txView) CreatePendingPayment(ctx context.Context, p *models.Payment) (bool, *models.Payment, error) {
	s := v.r.s
	k := key(p.Environment, p.TransactionID)
	if existing, ok := s.payments[k]; ok {
		cp := existing
		return false, &cp, nil
	}
	s.nextID++
	p.ID = s.nextID
	p.Status = models.PaymentStatusPending
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.payments[k] = *p
	cp := *p
	return true, &cp, nil
}

func (v *txView) FindPayment(ctx context.Context, env, txID string) (*models.Payment, error) {
	p, ok := v.r.s.payments[key(env, txID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (v *txView) TransitionPayment(ctx context.Context, env, txID, to, reason string) (bool, error) {
	k := key(env, txID)
	p, ok := v.r.s.payments[k]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = to
	if reason != "" {
		p.FailureReason = reason
	}
	p.UpdatedAt = time.Now()
	v.r.s.payments[k] = p
	return true, nil
}

func (v *txView) SettledTransactionIDs(ctx context.Context, env string, ids []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, id := range ids {
		if p, ok := v.r.s.payments[key(env, id)]; ok && p.Status != models.PaymentStatusPending {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (v *txView) FindEvent(ctx context.Context, id uint) (*models.Event, error) {
	e, ok := v.r.s.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (v *txView) DecrementTickets(ctx context.Context, eventID uint) (bool, error) {
	e, ok := v.r.s.events[eventID]
	if !ok || e.AvailableTickets <= 0 {
		return false, nil
	}
	e.AvailableTickets--
	v.r.s.events[eventID] = e
	return true, nil
}

func (v *txView) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if v.r.FailCreateTicket != nil {
		return v.r.FailCreateTicket
	}
	k := key(t.Environment, t.TransactionID)
	if _, ok := v.r.s.tickets[k]; ok {
		return ErrDuplicateKey
	}
	v.r.s.nextID++
	t.ID = v.r.s.nextID
	v.r.s.tickets[k] = *t
	return nil
}

func (v *txView) FindTicket(ctx context.Context, env, txID string) (*models.Ticket, error) {
	t, ok := v.r.s.tickets[key(env, txID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (v *txView) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, u := range v.r.s.users {
		if strings.ToLower(u.Email) == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (v *txView) FindMovie(ctx context.Context, id uint) (*models.Movie, error) {
	m, ok := v.r.s.movies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (v *txView) CreatePurchasedVideo(ctx context.Context, pv *models.PurchasedVideo) error {
	k := key(pv.Environment, pv.TransactionID)
	if _, ok := v.r.s.videos[k]; ok {
		return ErrDuplicateKey
	}
	v.r.s.nextID++
	pv.ID = v.r.s.nextID
	v.r.s.videos[k] = *pv
	return nil
}

func (v *txView) FindPurchasedVideo(ctx context.Context, env, txID string) (*models.PurchasedVideo, error) {
	pv, ok := v.r.s.videos[key(env, txID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pv, nil
}

func (v *txView) FindStoragePlan(ctx context.Context, id uint) (*models.StoragePlan, error) {
	p, ok := v.r.s.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (v *txView) CreateStorageCredit(ctx context.Context, c *models.StorageCredit) error {
	k := key(c.Environment, c.TransactionID)
	if _, ok := v.r.s.credits[k]; ok {
		return ErrDuplicateKey
	}
	v.r.s.nextID++
	c.ID = v.r.s.nextID
	v.r.s.credits[k] = *c
	return nil
}

func (v *txView) FindStorageCredit(ctx context.Context, env, txID string) (*models.StorageCredit, error) {
	c, ok := v.r.s.credits[key(env, txID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (v *txView) IncrementStorageUsed(ctx context.Context, userID uint, bytes int64) error {
	v.r.s.used[userID] += bytes
	return nil
}

var _ fulfillment.Repository = (*Repository)(nil)
