package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("not found")

// ArchivedLead is one stored lead row.
type ArchivedLead struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Form           types.LeadForm
	Callback       bool
	CreatedAt      time.Time
}

// LeadRepository handles database operations for archived leads.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

// ArchiveLead stores a copy of a submitted lead form. Qualification answers
// are kept as JSON since their questions are model-generated.
func (r *LeadRepository) ArchiveLead(ctx context.Context, conversationID uuid.UUID, form types.LeadForm, callback bool) error {
	answers, err := json.Marshal(form.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO leads (id, conversation_id, name, email, phone, user_type, service_type, message, answers, callback)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), conversationID, form.Name, form.Email, form.Phone,
		form.UserType, form.ServiceType, form.Message, answers, callback,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetByID returns one archived lead.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*ArchivedLead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, conversation_id, name, email, phone, user_type, service_type, message, answers, callback, created_at
		FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// List returns paginated leads, newest first, with the total count.
func (r *LeadRepository) List(ctx context.Context, skip, take int) ([]ArchivedLead, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, name, email, phone, user_type, service_type, message, answers, callback, created_at
		FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`, take, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []ArchivedLead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, total, nil
}

func scanLead(row pgx.Row) (*ArchivedLead, error) {
	var (
		lead    ArchivedLead
		answers []byte
	)
	if err := row.Scan(
		&lead.ID, &lead.ConversationID,
		&lead.Form.Name, &lead.Form.Email, &lead.Form.Phone,
		&lead.Form.UserType, &lead.Form.ServiceType, &lead.Form.Message,
		&answers, &lead.Callback, &lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &lead.Form.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return &lead, nil
}
