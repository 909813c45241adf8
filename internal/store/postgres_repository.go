/**
 * @description
 * PostgreSQL implementation of the Repository interface: wallets, the transaction log,
 * users and reference sequences. Partner and order queries live in
 * postgres_repository_orders.go.
 *
 * Balance changes are single conditional UPDATE statements, so a debit can never
 * race past the sufficient-funds check.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver (pool, transactions, error codes).
 * - github.com/google/uuid: identifiers.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the concrete implementation of the Repository for PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	seq  *pgxpool.Pool
	db   querier
	tx   pgx.Tx
}

// NewPostgresRepository creates a new instance of PostgresRepository. seq serves
// NextSequence and must not be pool: references are drawn while a transaction
// already holds one of pool's connections, so sharing it can exhaust the pool.
func NewPostgresRepository(pool, seq *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, seq: seq, db: pool}
}

func (r *PostgresRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresRepository{pool: r.pool, seq: r.seq, db: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// NextSequence runs as its own statement on the sequence pool so the counter row
// is not held until the caller's transaction ends.
func (r *PostgresRepository) NextSequence(ctx context.Context, scope string, day string) (int64, error) {
	var value int64
	err := r.seq.QueryRow(ctx, `
		INSERT INTO reference_sequences (scope, day, value) VALUES ($1, $2, 1)
		ON CONFLICT (scope, day) DO UPDATE SET value = reference_sequences.value + 1
		RETURNING value`, scope, day).Scan(&value)
	return value, err
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// --- wallets ---

const walletColumns = "id, owner_id, owner_kind, balance, total_added, total_withdrawn, currency, created_at, updated_at"

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var kind string
	var balance, added, withdrawn int64
	err := row.Scan(&w.ID, &w.OwnerID, &kind, &balance, &added, &withdrawn, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	w.OwnerKind = domain.OwnerKind(kind)
	w.Balance, w.TotalAdded, w.TotalWithdrawn = domain.Amount(balance), domain.Amount(added), domain.Amount(withdrawn)
	return &w, nil
}

func (r *PostgresRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	query := `
		INSERT INTO wallets (id, owner_id, owner_kind, balance, total_added, total_withdrawn, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, owner_kind) DO NOTHING
		RETURNING created_at, updated_at`
	// DO NOTHING keeps a surrounding transaction usable when the owner already has a wallet.
	err := r.db.QueryRow(ctx, query,
		wallet.ID, wallet.OwnerID, string(wallet.OwnerKind),
		int64(wallet.Balance), int64(wallet.TotalAdded), int64(wallet.TotalWithdrawn), wallet.Currency,
	).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || isPgError(err, pgUniqueViolation) {
		return domain.ErrWalletExists
	}
	return err
}

func (r *PostgresRepository) FindWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	query := "SELECT " + walletColumns + " FROM wallets WHERE owner_id = $1 AND owner_kind = $2"
	return scanWallet(r.db.QueryRow(ctx, query, owner.ID, string(owner.Kind)))
}

func (r *PostgresRepository) DepositWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	query := `
		UPDATE wallets SET balance = balance + $3, total_added = total_added + $3, updated_at = now()
		WHERE owner_id = $1 AND owner_kind = $2
		RETURNING ` + walletColumns
	return scanWallet(r.db.QueryRow(ctx, query, owner.ID, string(owner.Kind), int64(amount)))
}

func (r *PostgresRepository) CreditWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	query := `
		UPDATE wallets SET balance = balance + $3, updated_at = now()
		WHERE owner_id = $1 AND owner_kind = $2
		RETURNING ` + walletColumns
	return scanWallet(r.db.QueryRow(ctx, query, owner.ID, string(owner.Kind), int64(amount)))
}

// DebitWallet performs an atomic conditional debit on an owner's wallet.
func (r *PostgresRepository) DebitWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	query := `
		UPDATE wallets SET balance = balance - $3, updated_at = now()
		WHERE owner_id = $1 AND owner_kind = $2 AND balance >= $3
		RETURNING ` + walletColumns
	return r.conditionalDebit(ctx, owner, query, amount)
}

func (r *PostgresRepository) WithdrawWallet(ctx context.Context, owner domain.Owner, amount domain.Amount) (*domain.Wallet, error) {
	query := `
		UPDATE wallets SET balance = balance - $3, total_withdrawn = total_withdrawn + $3, updated_at = now()
		WHERE owner_id = $1 AND owner_kind = $2 AND balance >= $3
		RETURNING ` + walletColumns
	return r.conditionalDebit(ctx, owner, query, amount)
}

func (r *PostgresRepository) conditionalDebit(ctx context.Context, owner domain.Owner, query string, amount domain.Amount) (*domain.Wallet, error) {
	wallet, err := scanWallet(r.db.QueryRow(ctx, query, owner.ID, string(owner.Kind), int64(amount)))
	if err == nil {
		return wallet, nil
	}
	if isPgError(err, pgCheckViolation) {
		return nil, domain.ErrInsufficientFunds
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, err
	}

	// No row matched: either the wallet is missing or the balance did not cover amount.
	var exists bool
	if err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM wallets WHERE owner_id = $1 AND owner_kind = $2)",
		owner.ID, string(owner.Kind),
	).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrInsufficientFunds
	}
	return nil, domain.ErrWalletNotFound
}

func (r *PostgresRepository) DeleteWallet(ctx context.Context, owner domain.Owner) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM wallets WHERE owner_id = $1 AND owner_kind = $2", owner.ID, string(owner.Kind))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// --- transactions ---

const transactionColumns = `id, reference, amount, kind, status, from_id, from_kind, from_name,
	to_id, to_kind, to_name, description, related_order_id, created_at`

func partyColumns(p *domain.Party) (*uuid.UUID, *string, *string) {
	if p == nil {
		return nil, nil, nil
	}
	kind := string(p.Kind)
	name := p.Name
	return p.ID, &kind, &name
}

func partyFromColumns(id *uuid.UUID, kind, name *string) *domain.Party {
	if kind == nil {
		return nil
	}
	p := &domain.Party{ID: id, Kind: domain.PartyKind(*kind)}
	if name != nil {
		p.Name = *name
	}
	return p
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                 domain.Transaction
		amount             int64
		kind, status       string
		fromID, toID       *uuid.UUID
		fromKind, fromName *string
		toKind, toName     *string
	)
	err := row.Scan(&tx.ID, &tx.Reference, &amount, &kind, &status,
		&fromID, &fromKind, &fromName, &toID, &toKind, &toName,
		&tx.Description, &tx.RelatedOrderID, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount = domain.Amount(amount)
	tx.Kind = domain.TransactionKind(kind)
	tx.Status = domain.TransactionStatus(status)
	tx.From = partyFromColumns(fromID, fromKind, fromName)
	tx.To = partyFromColumns(toID, toKind, toName)
	return &tx, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// CreateTransaction appends a ledger record. There is no update path.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	fromID, fromKind, fromName := partyColumns(tx.From)
	toID, toKind, toName := partyColumns(tx.To)
	query := `
		INSERT INTO transactions (
			id, reference, amount, kind, status, from_id, from_kind, from_name,
			to_id, to_kind, to_name, description, related_order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.Reference, int64(tx.Amount), string(tx.Kind), string(tx.Status),
		fromID, fromKind, fromName, toID, toKind, toName,
		tx.Description, tx.RelatedOrderID,
	).Scan(&tx.CreatedAt)
	if isPgError(err, pgUniqueViolation) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE reference = $1"
	return scanTransaction(r.db.QueryRow(ctx, query, reference))
}

// sqlFilter accumulates WHERE conditions and their positional arguments.
type sqlFilter struct {
	conds []string
	args  []any
}

func (f *sqlFilter) arg(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *sqlFilter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func (f *sqlFilter) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		b.WriteString(" LIMIT " + f.arg(limit))
	}
	if offset > 0 {
		b.WriteString(" OFFSET " + f.arg(offset))
	}
	return b.String()
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	f := &sqlFilter{}
	if filter.Party.ID != uuid.Nil {
		id, kind := f.arg(filter.Party.ID), f.arg(string(filter.Party.Kind))
		f.conds = append(f.conds, fmt.Sprintf("((from_id = %s AND from_kind = %s) OR (to_id = %s AND to_kind = %s))", id, kind, id, kind))
	}
	if filter.Kind != "" {
		f.conds = append(f.conds, "kind = "+f.arg(string(filter.Kind)))
	}
	if filter.Status != "" {
		f.conds = append(f.conds, "status = "+f.arg(string(filter.Status)))
	}
	if filter.From != nil {
		f.conds = append(f.conds, "created_at >= "+f.arg(*filter.From))
	}
	if filter.To != nil {
		f.conds = append(f.conds, "created_at <= "+f.arg(*filter.To))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM transactions"+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := "SELECT " + transactionColumns + " FROM transactions" + f.where() +
		" ORDER BY created_at DESC, reference DESC" + f.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := collectTransactions(rows)
	return txs, total, err
}

func (r *PostgresRepository) FindTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE related_order_id = $1 ORDER BY created_at"
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *PostgresRepository) SummarizePendingPayments(ctx context.Context) ([]domain.PendingPaymentSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT from_id, count(*), COALESCE(sum(amount), 0)::bigint, min(created_at)
		FROM transactions
		WHERE kind = 'payment' AND status = 'pending' AND from_kind = 'mcp-user' AND from_id IS NOT NULL
		GROUP BY from_id
		ORDER BY from_id::text`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingPaymentSummary
	for rows.Next() {
		var s domain.PendingPaymentSummary
		var amount int64
		if err := rows.Scan(&s.MCPID, &s.Count, &amount, &s.Oldest); err != nil {
			return nil, err
		}
		s.Amount = domain.Amount(amount)
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- users ---

const userColumns = "id, name, email, password_hash, role, phone, address, created_at, updated_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Phone, &u.Address, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, role, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.Phone, user.Address,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isPgError(err, pgUniqueViolation) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET name = $2, phone = $3, address = $4, password_hash = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, query, user.ID, user.Name, user.Phone, user.Address, user.PasswordHash).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}
