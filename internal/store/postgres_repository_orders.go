package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- partners ---

const partnerColumns = `id, mcp_id, name, phone, email, address, status, payment_type, payment_amount::text,
	wallet_id, total_orders, completed_orders, pending_orders, created_at, updated_at`

func scanPartner(row pgx.Row) (*domain.Partner, error) {
	var (
		p                   domain.Partner
		status, paymentType string
		paymentAmount       string
	)
	err := row.Scan(&p.ID, &p.MCPID, &p.Name, &p.Phone, &p.Email, &p.Address, &status, &paymentType, &paymentAmount,
		&p.WalletID, &p.TotalOrders, &p.CompletedOrders, &p.PendingOrders, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPartnerNotFound
		}
		return nil, err
	}
	p.Status = domain.PartnerStatus(status)
	p.PaymentType = domain.PaymentType(paymentType)
	p.PaymentAmount, err = decimal.NewFromString(paymentAmount)
	if err != nil {
		return nil, fmt.Errorf("parse partner payment amount %q: %w", paymentAmount, err)
	}
	return &p, nil
}

func collectPartners(rows pgx.Rows) ([]domain.Partner, error) {
	defer rows.Close()
	out := []domain.Partner{}
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreatePartner(ctx context.Context, partner *domain.Partner) error {
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	query := `
		INSERT INTO pickup_partners (
			id, mcp_id, name, phone, email, address, status, payment_type, payment_amount,
			wallet_id, total_orders, completed_orders, pending_orders
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13)
		RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		partner.ID, partner.MCPID, partner.Name, partner.Phone, partner.Email, partner.Address,
		string(partner.Status), string(partner.PaymentType), partner.PaymentAmount.String(),
		partner.WalletID, partner.TotalOrders, partner.CompletedOrders, partner.PendingOrders,
	).Scan(&partner.CreatedAt, &partner.UpdatedAt)
}

func (r *PostgresRepository) FindPartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) (*domain.Partner, error) {
	query := "SELECT " + partnerColumns + " FROM pickup_partners WHERE id = $1 AND mcp_id = $2"
	return scanPartner(r.db.QueryRow(ctx, query, partnerID, mcpID))
}

func (r *PostgresRepository) FindPartnerByContact(ctx context.Context, mcpID uuid.UUID, email string, phone string, excludeID *uuid.UUID) (*domain.Partner, error) {
	query := "SELECT " + partnerColumns + ` FROM pickup_partners
		WHERE mcp_id = $1
		  AND (($2::text <> '' AND lower(email) = lower($2::text)) OR ($3::text <> '' AND phone = $3::text))
		  AND ($4::uuid IS NULL OR id <> $4::uuid)
		LIMIT 1`
	return scanPartner(r.db.QueryRow(ctx, query, mcpID, email, phone, excludeID))
}

func (r *PostgresRepository) ListPartners(ctx context.Context, filter domain.PartnerFilter) ([]domain.Partner, int, error) {
	f := &sqlFilter{}
	f.conds = append(f.conds, "mcp_id = "+f.arg(filter.MCPID))
	if filter.Status != "" {
		f.conds = append(f.conds, "status = "+f.arg(string(filter.Status)))
	}
	if filter.Search != "" {
		pattern := f.arg("%" + filter.Search + "%")
		f.conds = append(f.conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s OR phone LIKE %s)", pattern, pattern, pattern))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM pickup_partners"+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count partners: %w", err)
	}
	query := "SELECT " + partnerColumns + " FROM pickup_partners" + f.where() +
		" ORDER BY created_at DESC" + f.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list partners: %w", err)
	}
	partners, err := collectPartners(rows)
	return partners, total, err
}

// UpdatePartner writes contact, status and payment fields. Counters are only
// changed through AdjustPartnerCounters.
func (r *PostgresRepository) UpdatePartner(ctx context.Context, partner *domain.Partner) error {
	query := `
		UPDATE pickup_partners
		SET name = $3, phone = $4, email = $5, address = $6, status = $7, payment_type = $8,
		    payment_amount = $9::numeric, updated_at = now()
		WHERE id = $1 AND mcp_id = $2
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		partner.ID, partner.MCPID, partner.Name, partner.Phone, partner.Email, partner.Address,
		string(partner.Status), string(partner.PaymentType), partner.PaymentAmount.String(),
	).Scan(&partner.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPartnerNotFound
	}
	return err
}

func (r *PostgresRepository) DeletePartner(ctx context.Context, mcpID uuid.UUID, partnerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM pickup_partners WHERE id = $1 AND mcp_id = $2", partnerID, mcpID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPartnerNotFound
	}
	return nil
}

func (r *PostgresRepository) AdjustPartnerCounters(ctx context.Context, partnerID uuid.UUID, delta domain.CounterDelta) (*domain.Partner, error) {
	query := `
		UPDATE pickup_partners
		SET total_orders = total_orders + $2,
		    completed_orders = completed_orders + $3,
		    pending_orders = pending_orders + $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + partnerColumns
	return scanPartner(r.db.QueryRow(ctx, query, partnerID, delta.Total, delta.Completed, delta.Pending))
}

func (r *PostgresRepository) SetPartnerWallet(ctx context.Context, partnerID uuid.UUID, walletID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "UPDATE pickup_partners SET wallet_id = $2, updated_at = now() WHERE id = $1", partnerID, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPartnerNotFound
	}
	return nil
}

func (r *PostgresRepository) CountActiveOrdersForPartner(ctx context.Context, partnerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT count(*) FROM orders WHERE pickup_partner_id = $1 AND status IN ('pending', 'in-progress')",
		partnerID,
	).Scan(&count)
	return count, err
}

func (r *PostgresRepository) PartnerStatistics(ctx context.Context, mcpID uuid.UUID, top int) (*domain.PartnerStatistics, error) {
	stats := &domain.PartnerStatistics{}
	err := r.db.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status = 'active'), count(*) FILTER (WHERE status = 'inactive')
		FROM pickup_partners WHERE mcp_id = $1`, mcpID,
	).Scan(&stats.Total, &stats.Active, &stats.Inactive)
	if err != nil {
		return nil, fmt.Errorf("count partners: %w", err)
	}

	rows, err := r.db.Query(ctx, "SELECT "+partnerColumns+
		" FROM pickup_partners WHERE mcp_id = $1 ORDER BY completed_orders DESC, name LIMIT $2", mcpID, top)
	if err != nil {
		return nil, fmt.Errorf("top partners: %w", err)
	}
	stats.TopPartners, err = collectPartners(rows)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// --- orders ---

const orderColumns = `id, order_number, mcp_id, customer_name, customer_phone, customer_address,
	pickup_partner_id, status, payment_amount, description, pickup_location, drop_location,
	assigned_at, completed_at, created_at, updated_at`

func encodeLocation(loc *domain.Location) (*string, error) {
	if loc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func decodeLocation(raw []byte) (*domain.Location, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var loc domain.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o            domain.Order
		status       string
		amount       int64
		pickup, drop []byte
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.MCPID, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Address,
		&o.PickupPartnerID, &status, &amount, &o.Description, &pickup, &drop,
		&o.AssignedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentAmount = domain.Amount(amount)
	if o.PickupLocation, err = decodeLocation(pickup); err != nil {
		return nil, fmt.Errorf("decode pickup location: %w", err)
	}
	if o.DropLocation, err = decodeLocation(drop); err != nil {
		return nil, fmt.Errorf("decode drop location: %w", err)
	}
	return &o, nil
}

func orderLocations(order *domain.Order) (*string, *string, error) {
	pickup, err := encodeLocation(order.PickupLocation)
	if err != nil {
		return nil, nil, err
	}
	drop, err := encodeLocation(order.DropLocation)
	if err != nil {
		return nil, nil, err
	}
	return pickup, drop, nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	pickup, drop, err := orderLocations(order)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO orders (
			id, order_number, mcp_id, customer_name, customer_phone, customer_address,
			pickup_partner_id, status, payment_amount, description, pickup_location, drop_location,
			assigned_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14)
		RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, query,
		order.ID, order.OrderNumber, order.MCPID, order.Customer.Name, order.Customer.Phone, order.Customer.Address,
		order.PickupPartnerID, string(order.Status), int64(order.PaymentAmount), order.Description, pickup, drop,
		order.AssignedAt, order.CompletedAt,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if isPgError(err, pgUniqueViolation) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *PostgresRepository) FindOrder(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND mcp_id = $2"
	return scanOrder(r.db.QueryRow(ctx, query, orderID, mcpID))
}

func (r *PostgresRepository) FindOrderForUpdate(ctx context.Context, mcpID uuid.UUID, orderID uuid.UUID) (*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND mcp_id = $2 FOR UPDATE"
	return scanOrder(r.db.QueryRow(ctx, query, orderID, mcpID))
}

func (r *PostgresRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	pickup, drop, err := orderLocations(order)
	if err != nil {
		return err
	}
	query := `
		UPDATE orders
		SET customer_name = $3, customer_phone = $4, customer_address = $5, pickup_partner_id = $6,
		    status = $7, payment_amount = $8, description = $9, pickup_location = $10::jsonb,
		    drop_location = $11::jsonb, assigned_at = $12, completed_at = $13, updated_at = now()
		WHERE id = $1 AND mcp_id = $2
		RETURNING updated_at`
	err = r.db.QueryRow(ctx, query,
		order.ID, order.MCPID, order.Customer.Name, order.Customer.Phone, order.Customer.Address,
		order.PickupPartnerID, string(order.Status), int64(order.PaymentAmount), order.Description,
		pickup, drop, order.AssignedAt, order.CompletedAt,
	).Scan(&order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	return err
}

func (r *PostgresRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	f := &sqlFilter{}
	f.conds = append(f.conds, "mcp_id = "+f.arg(filter.MCPID))
	if filter.Status != "" {
		f.conds = append(f.conds, "status = "+f.arg(string(filter.Status)))
	}
	if filter.PartnerID != nil {
		f.conds = append(f.conds, "pickup_partner_id = "+f.arg(*filter.PartnerID))
	}
	if filter.From != nil {
		f.conds = append(f.conds, "created_at >= "+f.arg(*filter.From))
	}
	if filter.To != nil {
		f.conds = append(f.conds, "created_at <= "+f.arg(*filter.To))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders"+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	query := "SELECT " + orderColumns + " FROM orders" + f.where() +
		" ORDER BY created_at DESC, order_number DESC" + f.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, f.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *PostgresRepository) OrderStatistics(ctx context.Context, mcpID uuid.UUID) (*domain.OrderStatistics, error) {
	stats := &domain.OrderStatistics{}
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'pending'),
		       count(*) FILTER (WHERE status = 'in-progress'),
		       count(*) FILTER (WHERE status = 'completed'),
		       count(*) FILTER (WHERE status = 'cancelled')
		FROM orders WHERE mcp_id = $1`, mcpID,
	).Scan(&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed, &stats.Cancelled)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *PostgresRepository) OrderCountsByMonth(ctx context.Context, mcpID uuid.UUID, since time.Time) ([]domain.MonthlyOrderCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC')::int,
		       EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int,
		       count(*),
		       count(*) FILTER (WHERE status = 'completed')
		FROM orders
		WHERE mcp_id = $1 AND created_at >= $2
		GROUP BY 1, 2
		ORDER BY 1, 2`, mcpID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MonthlyOrderCount
	for rows.Next() {
		var c domain.MonthlyOrderCount
		var month int
		if err := rows.Scan(&c.Year, &month, &c.Total, &c.Completed); err != nil {
			return nil, err
		}
		c.Month = time.Month(month)
		out = append(out, c)
	}
	return out, rows.Err()
}
