package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"agrolime/liming-portal-backend/internal/apierror"
)

// ReadModel defines the read-only queries behind exports
type ReadModel interface {
	PlanHeader(ctx context.Context, id uuid.UUID) (*PlanRow, error)
	PlanApplications(ctx context.Context, planID uuid.UUID) ([]ApplicationRow, error)
	PlanSummaries(ctx context.Context, filter SummaryFilter) ([]PlanSummaryRow, error)
}

// SQLReadModel implements ReadModel over the plan tables written by the
// planning repository. Queries use ? placeholders rebound per driver.
type SQLReadModel struct {
	db *sqlx.DB
}

// NewSQLReadModel creates a new read model
func NewSQLReadModel(db *sqlx.DB) *SQLReadModel {
	return &SQLReadModel{db: db}
}

func (r *SQLReadModel) PlanHeader(ctx context.Context, id uuid.UUID) (*PlanRow, error) {
	query := r.db.Rebind(`
		SELECT id, parcel_id, parcel_name, area_ha, soil_texture, land_use,
			   start_ph, target_ph, total_cao_need, severity, methodology, status, version
		FROM liming_plans
		WHERE id = ? AND deleted_at IS NULL
	`)

	var plan PlanRow
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", id, apierror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *SQLReadModel) PlanApplications(ctx context.Context, planID uuid.UUID) ([]ApplicationRow, error) {
	query := r.db.Rebind(`
		SELECT id, sequence, year, season, product_name, cao_content, mgo_content,
			   price_per_ton, dose_per_ha, total_dose, cao_per_ha, mgo_per_ha,
			   effective_cao_per_ha, ph_before, ph_after, note, status
		FROM liming_applications
		WHERE plan_id = ?
		ORDER BY sequence
	`)

	rows := []ApplicationRow{}
	if err := r.db.SelectContext(ctx, &rows, query, planID); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return rows, nil
}

func (r *SQLReadModel) PlanSummaries(ctx context.Context, filter SummaryFilter) ([]PlanSummaryRow, error) {
	var conditions []string
	var args []interface{}

	conditions = append(conditions, "p.deleted_at IS NULL")
	if filter.ParcelID != nil {
		conditions = append(conditions, "p.parcel_id = ?")
		args = append(args, *filter.ParcelID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "p.status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT p.id, p.parcel_name, p.area_ha, p.soil_texture, p.start_ph, p.target_ph,
			   p.severity, p.status, p.version,
			   COUNT(a.id) AS applications,
			   COALESCE(SUM(CASE WHEN a.status <> 'cancelled' THEN a.dose_per_ha ELSE 0 END), 0) AS total_dose,
			   COALESCE(SUM(CASE WHEN a.status <> 'cancelled' THEN a.total_dose ELSE 0 END), 0) AS total_product,
			   COALESCE(SUM(CASE WHEN a.status <> 'cancelled' THEN a.total_dose * a.price_per_ton ELSE 0 END), 0) AS total_cost,
			   COALESCE((
				   SELECT l.ph_after FROM liming_applications l
				   WHERE l.plan_id = p.id AND l.status <> 'cancelled'
				   ORDER BY l.sequence DESC LIMIT 1
			   ), p.start_ph) AS final_ph
		FROM liming_plans p
		LEFT JOIN liming_applications a ON a.plan_id = p.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY p.id, p.parcel_name, p.area_ha, p.soil_texture, p.start_ph, p.target_ph,
				 p.severity, p.status, p.version
		ORDER BY p.parcel_name, p.id`

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows := []PlanSummaryRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list plan summaries: %w", err)
	}
	return rows, nil
}
