package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Messages live in their
// own table but are owned by the ticket aggregate: they are only written
// through UpdateWithMessage and only read in thread order.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	UpdateWithMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListVisible(ctx context.Context, userID string, role domain.Role, limit, offset int) ([]domain.Ticket, error)
	ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error)
	CountByStatus(ctx context.Context, status domain.TicketStatus) (int64, error)
	CountByAssignee(ctx context.Context, userID string) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.external_key, t.subject, t.description, t.status, t.priority,
               t.created_by, t.assigned_to, u.email, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, subject, description, status, priority, created_by, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

const updateTicketQuery = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, assigned_to=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

// UpdateWithMessage persists a ticket mutation and, when msg is non-nil, the
// appended thread entry in one transaction. Either both land or neither does.
func (r *ticketRepository) UpdateWithMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if msg != nil {
		const insertMessage = `
        INSERT INTO ticket_messages (ticket_id, sender_id, body)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
		if err := tx.QueryRow(ctx, insertMessage,
			msg.TicketID,
			msg.SenderID,
			msg.Body,
		).Scan(&msg.ID, &msg.CreatedAt); err != nil {
			return err
		}
	}

	if err := tx.QueryRow(ctx, updateTicketQuery,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets t JOIN users u ON u.id = t.created_by
        WHERE t.id=$1`, ticketColumns)

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Submitter,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}

	msgs, err := r.ListMessages(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Messages = msgs
	return &ticket, nil
}

func (r *ticketRepository) ListVisible(ctx context.Context, userID string, role domain.Role, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	base := fmt.Sprintf(`SELECT %s FROM tickets t JOIN users u ON u.id = t.created_by`, ticketColumns)
	var (
		query string
		args  []any
	)
	switch role {
	case domain.RoleCustomer:
		query = base + ` WHERE t.created_by=$1 ORDER BY t.updated_at DESC LIMIT $2 OFFSET $3`
		args = []any{userID, limit, offset}
	case domain.RoleAgent:
		query = base + ` WHERE t.assigned_to=$1 OR t.assigned_to IS NULL ORDER BY t.updated_at DESC LIMIT $2 OFFSET $3`
		args = []any{userID, limit, offset}
	default:
		query = base + ` ORDER BY t.updated_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_id, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var (
			msg    domain.Message
			sender *string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&sender,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		// sender_id is nulled when the account is deleted; the message stays.
		if sender != nil {
			msg.SenderID = *sender
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByStatus(ctx context.Context, status domain.TicketStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE status=$1`, status).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByAssignee(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE assigned_to=$1`, userID).Scan(&count)
	return count, err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.Subject,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.Submitter,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
