package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"leadline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const leadColumns = `id,owner_id,COALESCE(org_id,'') AS org_id,artifact_content,COALESCE(contact_email,'') AS contact_email,COALESCE(description,'') AS description,COALESCE(source,'') AS source,status,ai_ideation,created_at,updated_at`

func scanLead(row interface{ Scan(...any) error }) (domain.Lead, error) {
	var l domain.Lead
	var ideation sql.NullString
	err := row.Scan(&l.ID, &l.OwnerID, &l.OrgID, &l.ArtifactContent, &l.ContactEmail, &l.Description, &l.Source, &l.Status, &ideation, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if ideation.Valid {
		l.AIIdeation = &ideation.String
	}
	return l, err
}

func (r Repo) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO leads(id,owner_id,org_id,artifact_content,contact_email,description,source,status,ai_ideation,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.OwnerID, nullable(l.OrgID), l.ArtifactContent, nullable(l.ContactEmail), nullable(l.Description), nullable(l.Source), l.Status, nullableStringPtr(l.AIIdeation), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) InsertLeadTx(ctx context.Context, tx *sql.Tx, l domain.Lead) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO leads(id,owner_id,org_id,artifact_content,contact_email,description,source,status,ai_ideation,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.OwnerID, nullable(l.OrgID), l.ArtifactContent, nullable(l.ContactEmail), nullable(l.Description), nullable(l.Source), l.Status, nullableStringPtr(l.AIIdeation), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return scanLead(r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
}

func (r Repo) GetLeadTx(ctx context.Context, tx *sql.Tx, id string) (domain.Lead, error) {
	return scanLead(tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
}

// LeadFilters scope a lead listing. OwnerID is required; OrgID is only
// applied when org scoping is enabled.
type LeadFilters struct {
	OwnerID string
	OrgID   string
	Status  domain.Status
}

// ListLeads returns leads for the owner, newest first.
func (r Repo) ListLeads(ctx context.Context, f LeadFilters) ([]domain.Lead, error) {
	if f.OwnerID == "" {
		return nil, fmt.Errorf("owner id required")
	}
	where := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.OrgID != "" {
		where = append(where, "org_id=?")
		args = append(args, f.OrgID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	q := `SELECT ` + leadColumns + ` FROM leads WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// UpdateLeadStatusTx touches status and updated_at only.
func (r Repo) UpdateLeadStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.Status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE leads SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLeadIdeationTx writes ai_ideation, status and updated_at in one
// statement, so a backend failure before this point leaves the row
// untouched.
func (r Repo) UpdateLeadIdeationTx(ctx context.Context, tx *sql.Tx, id, ideation string, status domain.Status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE leads SET ai_ideation=?, status=?, updated_at=? WHERE id=?`, ideation, status, updatedAt, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
