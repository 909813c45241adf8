package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. A transaction holds the store
// lock for its whole duration and restores a snapshot on failure, so
// transactions are fully serialized.
type MemoryRepository struct {
	mu    *sync.Mutex
	state *memState
	seq   *idgen.MemorySequencer
	now   func() time.Time
	inTx  bool
}

type memState struct {
	wallets      map[domain.Owner]*domain.Wallet
	transactions []*domain.Transaction
	users        map[uuid.UUID]*domain.User
	partners     map[uuid.UUID]*domain.Partner
	orders       map[uuid.UUID]*domain.Order
}

func newMemState() *memState {
	return &memState{
		wallets:  make(map[domain.Owner]*domain.Wallet),
		users:    make(map[uuid.UUID]*domain.User),
		partners: make(map[uuid.UUID]*domain.Partner),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, w := range s.wallets {
		cp := *w
		c.wallets[k] = &cp
	}
	c.transactions = append([]*domain.Transaction(nil), s.transactions...)
	for k, u := range s.users {
		cp := *u
		c.users[k] = &cp
	}
	for k, p := range s.partners {
		c.partners[k] = copyPartner(p)
	}
	for k, o := range s.orders {
		c.orders[k] = copyOrder(o)
	}
	return c
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:    &sync.Mutex{},
		state: newMemState(),
		seq:   idgen.NewMemorySequencer(),
		now:   time.Now,
	}
}

// WithClock overrides the timestamp source used for created/updated fields.
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

func (r *MemoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	view := &MemoryRepository{mu: r.mu, state: r.state, seq: r.seq, now: r.now, inTx: true}
	defer func() {
		if p := recover(); p != nil {
			*r.state = *snapshot
			panic(p)
		}
		if err != nil {
			*r.state = *snapshot
		}
	}()
	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(view)
}

func (r *MemoryRepository) NextSequence(ctx context.Context, scope string, day string) (int64, error) {
	return r.seq.NextSequence(ctx, scope, day)
}

// --- wallets ---

func (r *MemoryRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	defer r.lock()()
	owner := wallet.Owner()
	if _, exists := r.state.wallets[owner]; exists {
		return domain.ErrWalletExists
	}
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	now := r.now()
	wallet.CreatedAt, wallet.UpdatedAt = now, now
	cp := *wallet
	r.state.wallets[owner] = &cp
	return nil
}

func (r *MemoryRepository) FindWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	defer r.lock()()
	w, ok := r.state.wallets[owner]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *MemoryRepository) mutateWallet(owner domain.Owner, fn func(w *domain.Wallet) error) (*domain.Wallet, error) {
	defer r.lock()()
	w, ok := r.state.wallets[owner]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	next := *w
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now()
	*w = next
	return &next, nil
}

func (r *MemoryRepository) DepositWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	return r.mutateWallet(owner, func(w *domain.Wallet) error {
		w.Balance += amount
		w.TotalAdded += amount
		return nil
	})
}

func (r *MemoryRepository) DebitWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	return r.mutateWallet(owner, func(w *domain.Wallet) error {
		if w.Balance < amount {
			return domain.ErrInsufficientFunds
		}
		w.Balance -= amount
		return nil
	})
}

func (r *MemoryRepository) CreditWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	return r.mutateWallet(owner, func(w *domain.Wallet) error {
		w.Balance += amount
		return nil
	})
}

func (r *MemoryRepository) WithdrawWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	return r.mutateWallet(owner, func(w *domain.Wallet) error {
		if w.Balance < amount {
			return domain.ErrInsufficientFunds
		}
		w.Balance -= amount
		w.TotalWithdrawn += amount
		return nil
	})
}

func (r *MemoryRepository) DeleteWallet(ctx context.Context, owner domain.Owner) error {
	defer r.lock()()
	if _, ok := r.state.wallets[owner]; !ok {
		return domain.ErrWalletNotFound
	}
	delete(r.state.wallets, owner)
	return nil
}

// --- transactions ---

func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	defer r.lock()()
	for _, existing := range r.state.transactions {
		if existing.Reference == tx.Reference {
			return domain.ErrDuplicateReference
		}
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.now()
	}
	cp := *tx
	r.state.transactions = append(r.state.transactions, &cp)
	return nil
}

func (r *MemoryRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	defer r.lock()()
	for _, tx := range r.state.transactions {
		if tx.Reference == reference {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	defer r.lock()()
	var matched []domain.Transaction
	for i := len(r.state.transactions) - 1; i >= 0; i-- {
		tx := r.state.transactions[i]
		if filter.Party.ID != uuid.Nil && !tx.Involves(filter.Party) {
			continue
		}
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if !withinRange(tx.CreatedAt, filter.From, filter.To) {
			continue
		}
		matched = append(matched, *tx)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r *MemoryRepository) FindTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transaction, error) {
	defer r.lock()()
	var out []domain.Transaction
	for _, tx := range r.state.transactions {
		if tx.RelatedOrderID != nil && *tx.RelatedOrderID == orderID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SummarizePendingPayments(ctx context.Context) ([]domain.PendingPaymentSummary, error) {
	defer r.lock()()
	byMCP := make(map[uuid.UUID]*domain.PendingPaymentSummary)
	for _, tx := range r.state.transactions {
		if tx.Kind != domain.TransactionPayment || tx.Status != domain.TransactionPending {
			continue
		}
		if tx.From == nil || tx.From.ID == nil || tx.From.Kind != domain.PartyMCP {
			continue
		}
		s, ok := byMCP[*tx.From.ID]
		if !ok {
			s = &domain.PendingPaymentSummary{MCPID: *tx.From.ID, Oldest: tx.CreatedAt}
			byMCP[*tx.From.ID] = s
		}
		s.Count++
		s.Amount += tx.Amount
		if tx.CreatedAt.Before(s.Oldest) {
			s.Oldest = tx.CreatedAt
		}
	}
	out := make([]domain.PendingPaymentSummary, 0, len(byMCP))
	for _, s := range byMCP {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MCPID.String() < out[j].MCPID.String() })
	return out, nil
}

// --- users ---

func (r *MemoryRepository) CreateUser(ctx context.Context, user *domain.User) error {
	defer r.lock()()
	for _, u := range r.state.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	r.state.users[user.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	defer r.lock()()
	u, ok := r.state.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.lock()()
	for _, u := range r.state.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	defer r.lock()()
	if _, ok := r.state.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = r.now()
	cp := *user
	r.state.users[user.ID] = &cp
	return nil
}

// --- partners ---

func (r *MemoryRepository) CreatePartner(ctx context.Context, partner *domain.Partner) error {
	defer r.lock()()
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	now := r.now()
	partner.CreatedAt, partner.UpdatedAt = now, now
	r.state.partners[partner.ID] = copyPartner(partner)
	return nil
}

func (r *MemoryRepository) FindPartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) (*domain.Partner, error) {
	defer r.lock()()
	p, ok := r.state.partners[partnerID]
	if !ok || p.MCPID != mcpID {
		return nil, domain.ErrPartnerNotFound
	}
	return copyPartner(p), nil
}

func (r *MemoryRepository) FindPartnerByContact(ctx context.Context, mcpID uuid.UUID, email string, phone string, excludeID *uuid.UUID) (*domain.Partner, error) {
	defer r.lock()()
	for _, p := range r.state.partners {
		if p.MCPID != mcpID || (excludeID != nil && p.ID == *excludeID) {
			continue
		}
		if (email != "" && strings.EqualFold(p.Email, email)) || (phone != "" && p.Phone == phone) {
			return copyPartner(p), nil
		}
	}
	return nil, domain.ErrPartnerNotFound
}

func (r *MemoryRepository) ListPartners(ctx context.Context, filter domain.PartnerFilter) ([]domain.Partner, int, error) {
	defer r.lock()()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []domain.Partner
	for _, p := range r.state.partners {
		if p.MCPID != filter.MCPID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Email), search) && !strings.Contains(p.Phone, search) {
			continue
		}
		matched = append(matched, *copyPartner(p))
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r *MemoryRepository) UpdatePartner(ctx context.Context, partner *domain.Partner) error {
	defer r.lock()()
	existing, ok := r.state.partners[partner.ID]
	if !ok || existing.MCPID != partner.MCPID {
		return domain.ErrPartnerNotFound
	}
	partner.UpdatedAt = r.now()
	r.state.partners[partner.ID] = copyPartner(partner)
	return nil
}

func (r *MemoryRepository) DeletePartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) error {
	defer r.lock()()
	p, ok := r.state.partners[partnerID]
	if !ok || p.MCPID != mcpID {
		return domain.ErrPartnerNotFound
	}
	delete(r.state.partners, partnerID)
	return nil
}

func (r *MemoryRepository) AdjustPartnerCounters(ctx context.Context, partnerID uuid.UUID, delta domain.CounterDelta) (*domain.Partner, error) {
	defer r.lock()()
	p, ok := r.state.partners[partnerID]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	p.TotalOrders += delta.Total
	p.CompletedOrders += delta.Completed
	p.PendingOrders += delta.Pending
	p.UpdatedAt = r.now()
	return copyPartner(p), nil
}

func (r *MemoryRepository) SetPartnerWallet(ctx context.Context, partnerID uuid.UUID, walletID uuid.UUID) error {
	defer r.lock()()
	p, ok := r.state.partners[partnerID]
	if !ok {
		return domain.ErrPartnerNotFound
	}
	id := walletID
	p.WalletID = &id
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) CountActiveOrdersForPartner(ctx context.Context, partnerID uuid.UUID) (int, error) {
	defer r.lock()()
	count := 0
	for _, o := range r.state.orders {
		if o.PickupPartnerID != nil && *o.PickupPartnerID == partnerID && o.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) PartnerStatistics(ctx context.Context, mcpID uuid.UUID, top int) (*domain.PartnerStatistics, error) {
	defer r.lock()()
	stats := &domain.PartnerStatistics{TopPartners: []domain.Partner{}}
	var all []domain.Partner
	for _, p := range r.state.partners {
		if p.MCPID != mcpID {
			continue
		}
		stats.Total++
		if p.Status == domain.PartnerActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
		all = append(all, *copyPartner(p))
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CompletedOrders != all[j].CompletedOrders {
			return all[i].CompletedOrders > all[j].CompletedOrders
		}
		return all[i].Name < all[j].Name
	})
	if top > 0 && len(all) > top {
		all = all[:top]
	}
	stats.TopPartners = append(stats.TopPartners, all...)
	return stats, nil
}

// --- orders ---

func (r *MemoryRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	defer r.lock()()
	for _, o := range r.state.orders {
		if o.OrderNumber == order.OrderNumber {
			return domain.ErrDuplicateReference
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := r.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.state.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *MemoryRepository) FindOrder(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error) {
	defer r.lock()()
	o, ok := r.state.orders[orderID]
	if !ok || o.MCPID != mcpID {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *MemoryRepository) FindOrderForUpdate(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error) {
	return r.FindOrder(ctx, mcpID, orderID)
}

func (r *MemoryRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	defer r.lock()()
	existing, ok := r.state.orders[order.ID]
	if !ok || existing.MCPID != order.MCPID {
		return domain.ErrOrderNotFound
	}
	order.UpdatedAt = r.now()
	r.state.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *MemoryRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	defer r.lock()()
	var matched []domain.Order
	for _, o := range r.state.orders {
		if o.MCPID != filter.MCPID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PartnerID != nil && (o.PickupPartnerID == nil || *o.PickupPartnerID != *filter.PartnerID) {
			continue
		}
		if !withinRange(o.CreatedAt, filter.From, filter.To) {
			continue
		}
		matched = append(matched, *copyOrder(o))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r *MemoryRepository) OrderStatistics(ctx context.Context, mcpID uuid.UUID) (*domain.OrderStatistics, error) {
	defer r.lock()()
	stats := &domain.OrderStatistics{}
	for _, o := range r.state.orders {
		if o.MCPID != mcpID {
			continue
		}
		stats.Total++
		switch o.Status {
		case domain.OrderPending:
			stats.Pending++
		case domain.OrderInProgress:
			stats.InProgress++
		case domain.OrderCompleted:
			stats.Completed++
		case domain.OrderCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) OrderCountsByMonth(ctx context.Context, mcpID uuid.UUID, since time.Time) ([]domain.MonthlyOrderCount, error) {
	defer r.lock()()
	type key struct {
		year  int
		month time.Month
	}
	buckets := make(map[key]*domain.MonthlyOrderCount)
	for _, o := range r.state.orders {
		if o.MCPID != mcpID || o.CreatedAt.Before(since) {
			continue
		}
		created := o.CreatedAt.UTC()
		k := key{created.Year(), created.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &domain.MonthlyOrderCount{Year: k.year, Month: k.month}
			buckets[k] = b
		}
		b.Total++
		if o.Status == domain.OrderCompleted {
			b.Completed++
		}
	}
	out := make([]domain.MonthlyOrderCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func withinRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func copyPartner(p *domain.Partner) *domain.Partner {
	cp := *p
	if p.WalletID != nil {
		id := *p.WalletID
		cp.WalletID = &id
	}
	return &cp
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.PickupPartnerID != nil {
		id := *o.PickupPartnerID
		cp.PickupPartnerID = &id
	}
	if o.AssignedAt != nil {
		t := *o.AssignedAt
		cp.AssignedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	if o.PickupLocation != nil {
		loc := *o.PickupLocation
		cp.PickupLocation = &loc
	}
	if o.DropLocation != nil {
		loc := *o.DropLocation
		cp.DropLocation = &loc
	}
	return &cp
}
