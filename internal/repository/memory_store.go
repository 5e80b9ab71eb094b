package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/google/uuid"
)

type record[T any] struct {
	value T
	seq   int64
}

type memoryState struct {
	seq           int64
	purchases     map[uuid.UUID]record[models.Purchase]
	payments      map[uuid.UUID]record[models.Payment]
	tickets       map[uuid.UUID]record[models.Ticket]
	events        map[uuid.UUID]record[models.Event]
	shows         map[uuid.UUID]record[models.Show]
	users         map[string]models.User
	webhookEvents map[uint]models.WebhookEvent
}

func newMemoryState() *memoryState {
	return &memoryState{
		purchases:     map[uuid.UUID]record[models.Purchase]{},
		payments:      map[uuid.UUID]record[models.Payment]{},
		tickets:       map[uuid.UUID]record[models.Ticket]{},
		events:        map[uuid.UUID]record[models.Event]{},
		shows:         map[uuid.UUID]record[models.Show]{},
		users:         map[string]models.User{},
		webhookEvents: map[uint]models.WebhookEvent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *memoryState) clone() *memoryState {
	return &memoryState{
		seq:           st.seq,
		purchases:     cloneMap(st.purchases),
		payments:      cloneMap(st.payments),
		tickets:       cloneMap(st.tickets),
		events:        cloneMap(st.events),
		shows:         cloneMap(st.shows),
		users:         cloneMap(st.users),
		webhookEvents: cloneMap(st.webhookEvents),
	}
}

// MemoryStore keeps everything in process. Transactions are serialized and run
// against a private copy of the state that replaces the shared one on commit,
// which gives the same all-or-nothing and row-lock behavior the gorm store has.
type MemoryStore struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex

	state *memoryState
	// inTx is set on the copy handed to a transaction callback.
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txMu:  &sync.Mutex{},
		mu:    &sync.RWMutex{},
		state: newMemoryState(),
	}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	tx := &MemoryStore{txMu: s.txMu, mu: s.mu, state: snapshot, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = snapshot
	s.mu.Unlock()
	return nil
}

// read runs fn under the shared lock unless the store is a transaction copy.
func (s *MemoryStore) read(fn func(st *memoryState)) {
	if s.inTx {
		fn(s.state)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// write serializes with transactions so a commit never drops a plain write.
func (s *MemoryStore) write(fn func(st *memoryState) error) error {
	if s.inTx {
		return fn(s.state)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (st *memoryState) next() int64 {
	st.seq++
	return st.seq
}

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func (s *MemoryStore) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return s.write(func(st *memoryState) error {
		if purchase.ID == uuid.Nil {
			purchase.ID = uuid.New()
		}
		if _, ok := st.purchases[purchase.ID]; ok {
			return ErrConflict
		}
		for _, r := range st.purchases {
			if r.value.Token == purchase.Token {
				return ErrConflict
			}
		}
		stamp(&purchase.CreatedAt, &purchase.UpdatedAt)
		st.purchases[purchase.ID] = record[models.Purchase]{value: *purchase, seq: st.next()}
		return nil
	})
}

func (s *MemoryStore) SavePurchase(ctx context.Context, purchase *models.Purchase) error {
	return s.write(func(st *memoryState) error {
		r, ok := st.purchases[purchase.ID]
		if !ok {
			return ErrNotFound
		}
		purchase.UpdatedAt = time.Now()
		r.value = *purchase
		st.purchases[purchase.ID] = r
		return nil
	})
}

func (s *MemoryStore) findPurchase(match func(p *models.Purchase) bool) (*models.Purchase, error) {
	var (
		found *models.Purchase
		seq   int64 = -1
	)
	s.read(func(st *memoryState) {
		for _, r := range st.purchases {
			p := r.value
			if match(&p) && r.seq > seq {
				found, seq = &p, r.seq
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) PurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.findPurchase(func(p *models.Purchase) bool { return p.ID == id })
}

func (s *MemoryStore) PurchaseByToken(ctx context.Context, token string) (*models.Purchase, error) {
	return s.findPurchase(func(p *models.Purchase) bool { return p.Token == token })
}

func (s *MemoryStore) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.PurchaseByID(ctx, id)
}

func (s *MemoryStore) LatestPurchaseForBuyer(ctx context.Context, eventID uuid.UUID, showName, taxID string) (*models.Purchase, error) {
	return s.findPurchase(func(p *models.Purchase) bool {
		return p.EventID == eventID && p.ShowName == showName && p.BuyerTaxID == taxID
	})
}

func (s *MemoryStore) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]models.Purchase, error) {
	term := strings.ToLower(strings.TrimSpace(filter.Query))
	var rows []record[models.Purchase]
	s.read(func(st *memoryState) {
		for _, r := range st.purchases {
			p := r.value
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
				continue
			}
			if term != "" {
				hay := strings.ToLower(strings.Join([]string{p.BuyerName, p.BuyerTaxID, p.BuyerEmail, p.ShowName, p.Token}, " "))
				if !strings.Contains(hay, term) {
					continue
				}
			}
			rows = append(rows, r)
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	out := make([]models.Purchase, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out, nil
}

func containsStatus(list []models.PurchaseStatus, s models.PurchaseStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.write(func(st *memoryState) error {
		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		if _, ok := st.payments[payment.ID]; ok {
			return ErrConflict
		}
		stamp(&payment.CreatedAt, &payment.UpdatedAt)
		st.payments[payment.ID] = record[models.Payment]{value: *payment, seq: st.next()}
		return nil
	})
}

func (s *MemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.write(func(st *memoryState) error {
		r, ok := st.payments[payment.ID]
		if !ok {
			return ErrNotFound
		}
		payment.UpdatedAt = time.Now()
		r.value = *payment
		st.payments[payment.ID] = r
		return nil
	})
}

func (s *MemoryStore) PaymentsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Payment, error) {
	var rows []record[models.Payment]
	s.read(func(st *memoryState) {
		for _, r := range st.payments {
			if r.value.PurchaseID == purchaseID {
				rows = append(rows, r)
			}
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]models.Payment, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out, nil
}

func (s *MemoryStore) PendingPaymentsExpiredBefore(ctx context.Context, t time.Time) ([]models.Payment, error) {
	var out []models.Payment
	s.read(func(st *memoryState) {
		for _, r := range st.payments {
			p := r.value
			if p.Status == models.PaymentPending && p.ExpiresAt != nil && p.ExpiresAt.Before(t) {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.write(func(st *memoryState) error {
		if ticket.ID == uuid.Nil {
			ticket.ID = uuid.New()
		}
		for _, r := range st.tickets {
			if r.value.Token == ticket.Token || r.value.ID == ticket.ID {
				return ErrConflict
			}
		}
		stamp(&ticket.CreatedAt, &ticket.UpdatedAt)
		st.tickets[ticket.ID] = record[models.Ticket]{value: *ticket, seq: st.next()}
		return nil
	})
}

func (s *MemoryStore) SaveTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.write(func(st *memoryState) error {
		r, ok := st.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		ticket.UpdatedAt = time.Now()
		r.value = *ticket
		st.tickets[ticket.ID] = r
		return nil
	})
}

func (s *MemoryStore) TicketsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Ticket, error) {
	var out []models.Ticket
	s.read(func(st *memoryState) {
		for _, r := range st.tickets {
			if r.value.PurchaseID == purchaseID {
				out = append(out, r.value)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *MemoryStore) TicketByToken(ctx context.Context, token string) (*models.Ticket, error) {
	var found *models.Ticket
	s.read(func(st *memoryState) {
		for _, r := range st.tickets {
			if r.value.Token == token {
				t := r.value
				found = &t
				return
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CountFulfilledTickets(ctx context.Context, purchaseID uuid.UUID) (int64, error) {
	var n int64
	s.read(func(st *memoryState) {
		for _, r := range st.tickets {
			if r.value.PurchaseID == purchaseID && r.value.HasArtifacts() {
				n++
			}
		}
	})
	return n, nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.write(func(st *memoryState) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		for _, r := range st.events {
			if r.value.Slug == event.Slug {
				return ErrConflict
			}
		}
		stamp(&event.CreatedAt, &event.UpdatedAt)
		st.events[event.ID] = record[models.Event]{value: *event, seq: st.next()}
		return nil
	})
}

func (s *MemoryStore) EventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	var found *models.Event
	s.read(func(st *memoryState) {
		for _, r := range st.events {
			if r.value.Slug == slug {
				e := r.value
				found = &e
				return
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CreateShow(ctx context.Context, show *models.Show) error {
	return s.write(func(st *memoryState) error {
		if show.ID == uuid.Nil {
			show.ID = uuid.New()
		}
		for _, r := range st.shows {
			if r.value.Slug == show.Slug {
				return ErrConflict
			}
		}
		stamp(&show.CreatedAt, &show.UpdatedAt)
		st.shows[show.ID] = record[models.Show]{value: *show, seq: st.next()}
		return nil
	})
}

func (s *MemoryStore) SaveShow(ctx context.Context, show *models.Show) error {
	return s.write(func(st *memoryState) error {
		r, ok := st.shows[show.ID]
		if !ok {
			return ErrNotFound
		}
		show.UpdatedAt = time.Now()
		r.value = *show
		st.shows[show.ID] = r
		return nil
	})
}

func (s *MemoryStore) findShow(match func(sh *models.Show) bool) (*models.Show, error) {
	var found *models.Show
	s.read(func(st *memoryState) {
		for _, r := range st.shows {
			sh := r.value
			if match(&sh) {
				found = &sh
				return
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) ShowByID(ctx context.Context, id uuid.UUID) (*models.Show, error) {
	return s.findShow(func(sh *models.Show) bool { return sh.ID == id })
}

func (s *MemoryStore) ShowByName(ctx context.Context, eventID uuid.UUID, name string) (*models.Show, error) {
	return s.findShow(func(sh *models.Show) bool { return sh.EventID == eventID && sh.Name == name })
}

func (s *MemoryStore) ShowsForEvent(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]models.Show, error) {
	var rows []record[models.Show]
	s.read(func(st *memoryState) {
		for _, r := range st.shows {
			if r.value.EventID != eventID || (activeOnly && !r.value.IsActive) {
				continue
			}
			rows = append(rows, r)
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]models.Show, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out, nil
}

// AddUser seeds an operator; the gorm store gets them from config.InitDatabase.
func (s *MemoryStore) AddUser(user models.User) {
	_ = s.write(func(st *memoryState) error {
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		st.users[user.Email] = user
		return nil
	})
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var (
		user models.User
		ok   bool
	)
	s.read(func(st *memoryState) { user, ok = st.users[email] })
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.write(func(st *memoryState) error {
		event.ID = uint(st.next())
		event.CreatedAt = time.Now()
		st.webhookEvents[event.ID] = *event
		return nil
	})
}

func (s *MemoryStore) SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.write(func(st *memoryState) error {
		st.webhookEvents[event.ID] = *event
		return nil
	})
}

// WebhookEvents returns the stored notifications oldest first.
func (s *MemoryStore) WebhookEvents() []models.WebhookEvent {
	var out []models.WebhookEvent
	s.read(func(st *memoryState) {
		for _, e := range st.webhookEvents {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
