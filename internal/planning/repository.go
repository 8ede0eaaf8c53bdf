package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists plans and their applications
type Repository interface {
	CreatePlan(ctx context.Context, plan *LimingPlan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*LimingPlan, error)
	ListPlans(ctx context.Context, filter PlanFilter) ([]*LimingPlan, error)
	ListPlanIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdatePlanStatus(ctx context.Context, id uuid.UUID, version int, status PlanStatus) (int, error)
	SaveCascade(ctx context.Context, planID uuid.UUID, version int, changes CascadeChanges) (*CascadeResult, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error
}

// errCascadeIncomplete aborts the cascade transaction once any item failed
var errCascadeIncomplete = errors.New("cascade incomplete")

// CascadeChanges is the diff one recalculation needs persisted
type CascadeChanges struct {
	Upserts  []LimingApplication
	Deletes  []uuid.UUID
	Baseline *Baseline
}

// Baseline is the reading a plan is walked from
type Baseline struct {
	ReadingID uuid.UUID
	StartPH   float64
}

// Empty reports whether there is nothing to write
func (c CascadeChanges) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0 && c.Baseline == nil
}

// CascadeResult reports the outcome of every item of a cascade write. When
// anything failed nothing was committed: Version is the unchanged one and
// Discarded lists the items that wrote cleanly before the rollback.
type CascadeResult struct {
	Version   int
	Succeeded []uuid.UUID
	Discarded []uuid.UUID
	Failed    map[uuid.UUID]error
}

// PartialFailureError tells the caller which application writes of a
// cascade failed. The cascade was rolled back as a whole, so the plan keeps
// its version and the edit can be retried unchanged.
type PartialFailureError struct {
	PlanID    uuid.UUID
	Discarded []uuid.UUID
	Failed    map[uuid.UUID]error
}

// Items lists the outcome of every id. Nothing of a rolled back cascade is
// persisted, so the succeeded list is always empty.
func (e *PartialFailureError) Items() ([]string, map[string]string) {
	failed := make(map[string]string, len(e.Failed)+len(e.Discarded))
	for _, id := range e.Discarded {
		failed[id.String()] = "rolled back with the cascade"
	}
	for id, err := range e.Failed {
		failed[id.String()] = err.Error()
	}
	return []string{}, failed
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return fmt.Sprintf("plan %s: %d of %d application writes failed, cascade rolled back (%s)",
		e.PlanID, len(e.Failed), len(e.Failed)+len(e.Discarded), strings.Join(ids, ", "))
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a plan repository over gorm
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the plan tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&LimingPlan{}, &LimingApplication{})
}

func (r *gormRepository) CreatePlan(ctx context.Context, plan *LimingPlan) error {
	if plan.Version == 0 {
		plan.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *gormRepository) GetPlan(ctx context.Context, id uuid.UUID) (*LimingPlan, error) {
	var plan LimingPlan
	err := r.db.WithContext(ctx).
		Preload("Applications", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&plan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *gormRepository) ListPlans(ctx context.Context, filter PlanFilter) ([]*LimingPlan, error) {
	query := r.db.WithContext(ctx).
		Preload("Applications", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Order("created_at DESC")
	if filter.ParcelID != nil {
		query = query.Where("parcel_id = ?", *filter.ParcelID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var plans []*LimingPlan
	if err := query.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *gormRepository) ListPlanIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&LimingPlan{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list plan ids: %w", err)
	}
	return ids, nil
}

func (r *gormRepository) UpdatePlanStatus(ctx context.Context, id uuid.UUID, version int, status PlanStatus) (int, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return bumpVersion(tx, id, version, map[string]any{"status": status})
	})
	if err != nil {
		return 0, err
	}
	return version + 1, nil
}

// SaveCascade bumps the plan version and writes every change behind its own
// savepoint so each item gets its own outcome. The cascade commits only when
// every item succeeded; otherwise the transaction is rolled back and the
// per-item outcome returned. A stale version rejects the whole write.
func (r *gormRepository) SaveCascade(ctx context.Context, planID uuid.UUID, version int, changes CascadeChanges) (*CascadeResult, error) {
	res := &CascadeResult{Failed: map[uuid.UUID]error{}}
	var extra map[string]any
	if b := changes.Baseline; b != nil {
		extra = map[string]any{"start_ph": b.StartPH, "reading_id": b.ReadingID}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, planID, version, extra); err != nil {
			return err
		}
		res.Version = version + 1

		for i, id := range changes.Deletes {
			sp := fmt.Sprintf("cascade_del_%d", i)
			if err := tx.SavePoint(sp).Error; err != nil {
				return fmt.Errorf("failed to create savepoint: %w", err)
			}
			if err := tx.Where("id = ? AND plan_id = ?", id, planID).Delete(&LimingApplication{}).Error; err != nil {
				if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
					return fmt.Errorf("failed to roll back savepoint: %w", rbErr)
				}
				res.Failed[id] = err
				continue
			}
			res.Succeeded = append(res.Succeeded, id)
		}

		for i := range changes.Upserts {
			a := changes.Upserts[i]
			a.PlanID = planID
			sp := fmt.Sprintf("cascade_upd_%d", i)
			if err := tx.SavePoint(sp).Error; err != nil {
				return fmt.Errorf("failed to create savepoint: %w", err)
			}
			if err := tx.Save(&a).Error; err != nil {
				if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
					return fmt.Errorf("failed to roll back savepoint: %w", rbErr)
				}
				res.Failed[a.ID] = err
				continue
			}
			res.Succeeded = append(res.Succeeded, a.ID)
		}
		if len(res.Failed) > 0 {
			return errCascadeIncomplete
		}
		return nil
	})
	if errors.Is(err, errCascadeIncomplete) {
		res.Version = version
		res.Discarded, res.Succeeded = res.Succeeded, nil
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *gormRepository) DeletePlan(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&LimingPlan{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return nil
}

// bumpVersion is the optimistic lock: the update only matches the version
// the caller read, and the updated row stays locked until the transaction ends.
func bumpVersion(tx *gorm.DB, id uuid.UUID, version int, extra map[string]any) error {
	updates := map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&LimingPlan{}).Where("id = ? AND version = ?", id, version).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update plan: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&LimingPlan{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check plan: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("plan %s at version %d: %w", id, version, ErrConcurrentModification)
}
