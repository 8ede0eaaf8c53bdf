package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// ParcelSource supplies the parcel and lab data a plan is generated from
type ParcelSource interface {
	GetParcel(ctx context.Context, id uuid.UUID) (*parcels.Parcel, error)
	LatestReading(ctx context.Context, parcelID uuid.UUID) (*parcels.NutrientReading, error)
}

// ProductSource resolves catalog products
type ProductSource interface {
	FindProduct(ctx context.Context, name string) (agronomy.LimingProduct, error)
	Reference(ctx context.Context) (agronomy.ProductCatalog, error)
}

// GeneratePlanRequest asks for a new plan from the latest reading of a parcel
type GeneratePlanRequest struct {
	ParcelID     uuid.UUID `json:"parcel_id" binding:"required"`
	StartYear    int       `json:"start_year"`
	StartSeason  Season    `json:"start_season"`
	SlotsPerYear int       `json:"slots_per_year"`
	ProductName  string    `json:"product_name"`
}

// PatchRequest is an application edit against a known plan version
type PatchRequest struct {
	Version int `json:"version"`
	ApplicationPatch
	ProductName *string `json:"product_name,omitempty"`
}

// AddApplicationRequest inserts a new application into a plan
type AddApplicationRequest struct {
	Version     int                     `json:"version"`
	Year        int                     `json:"year" binding:"required"`
	Season      Season                  `json:"season" binding:"required"`
	DosePerHa   float64                 `json:"dose_per_ha"`
	ProductName string                  `json:"product_name"`
	Product     *agronomy.LimingProduct `json:"product"`
}

// PlanView is a plan with its derived totals and chain check
type PlanView struct {
	*LimingPlan
	TotalDosePerHa float64            `json:"total_dose_per_ha"`
	TotalProduct   float64            `json:"total_product"`
	TotalCost      float64            `json:"total_cost"`
	Consistent     bool               `json:"consistent"`
	Issues         []ConsistencyIssue `json:"issues,omitempty"`
}

// SimulationView is the outcome of an edit that was not persisted
type SimulationView struct {
	PlanID       uuid.UUID           `json:"plan_id"`
	Version      int                 `json:"version"`
	Applications []LimingApplication `json:"applications"`
	Changed      []uuid.UUID         `json:"changed"`
	Removed      []uuid.UUID         `json:"removed,omitempty"`
}

// Service runs plan generation and the edit-recalculate-persist cycle
type Service struct {
	repo     Repository
	parcels  ParcelSource
	products ProductSource
	planner  *Planner
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new planning service
func NewService(repo Repository, parcelSource ParcelSource, products ProductSource, planner *Planner, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		parcels:  parcelSource,
		products: products,
		planner:  planner,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

// GeneratePlan derives the liming need from the latest reading, picks the
// product and lays the doses out as a draft plan.
func (s *Service) GeneratePlan(ctx context.Context, req GeneratePlanRequest) (*PlanView, error) {
	parcel, err := s.parcels.GetParcel(ctx, req.ParcelID)
	if err != nil {
		return nil, err
	}
	reading, err := s.parcels.LatestReading(ctx, req.ParcelID)
	if err != nil {
		return nil, err
	}

	engine := s.planner.Engine()
	need, err := engine.ComputeLimingNeed(reading.PH, parcel.SoilTexture, parcel.LandUse)
	if err != nil {
		return nil, err
	}
	mg, err := engine.Classify(agronomy.NutrientMg, reading.Mg, parcel.SoilTexture)
	if err != nil {
		return nil, err
	}

	product, err := s.resolveProduct(ctx, req.ProductName, mg, need.TotalCaOPerHa)
	if err != nil {
		return nil, err
	}

	if req.StartYear == 0 {
		req.StartYear = s.now().Year()
	}
	params := RecalcParams{
		Texture:    parcel.SoilTexture,
		TargetPH:   need.TargetPH,
		StartPH:    reading.PH,
		AreaHa:     parcel.AreaHa,
		MgCategory: mg,
	}
	apps, err := s.planner.BuildPlan(BuildRequest{
		Need:         need,
		Product:      product,
		StartYear:    req.StartYear,
		StartSeason:  req.StartSeason,
		SlotsPerYear: req.SlotsPerYear,
		Params:       params,
	})
	if err != nil {
		return nil, err
	}

	readingID := reading.ID
	plan := &LimingPlan{
		ParcelID:     parcel.ID,
		ParcelName:   parcel.Name,
		AreaHa:       parcel.AreaHa,
		SoilTexture:  parcel.SoilTexture,
		LandUse:      parcel.LandUse,
		StartPH:      reading.PH,
		TargetPH:     need.TargetPH,
		TotalCaONeed: need.TotalCaOPerHa,
		MgCategory:   mg,
		Severity:     need.Severity,
		Methodology:  engine.Methodology().Name,
		Status:       PlanDraft,
		Version:      1,
		ReadingID:    &readingID,
		Applications: apps,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		s.metrics.RecordPersistenceFailure("create_plan")
		return nil, err
	}

	s.metrics.RecordPlanGenerated(string(parcel.SoilTexture))
	s.recordWarnings(apps)
	s.logger.Info("Plan generated",
		zap.String("plan_id", plan.ID.String()),
		zap.String("parcel_id", parcel.ID.String()),
		zap.String("product", product.Name),
		zap.Int("applications", len(apps)),
		zap.Float64("cao_need", need.TotalCaOPerHa))
	return s.view(plan)
}

// resolveProduct returns the named catalog product or the selector's choice
func (s *Service) resolveProduct(ctx context.Context, name string, mg agronomy.Category, deficit float64) (agronomy.LimingProduct, error) {
	if name != "" {
		return s.products.FindProduct(ctx, name)
	}
	ref, err := s.products.Reference(ctx)
	if err != nil {
		return agronomy.LimingProduct{}, err
	}
	sel, err := s.planner.Engine().SelectProductFrom(ref, mg, deficit)
	if err != nil {
		return agronomy.LimingProduct{}, err
	}
	return sel.Primary.Product, nil
}

// GetPlan returns a plan with totals and a check of the stored chain
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*PlanView, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(plan)
}

// ListPlans returns plans, newest first
func (s *Service) ListPlans(ctx context.Context, filter PlanFilter) ([]*LimingPlan, error) {
	return s.repo.ListPlans(ctx, filter)
}

// DeletePlan removes a draft plan
func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status != PlanDraft {
		return fmt.Errorf("plan %s is %s: %w", id, plan.Status, ErrPlanLocked)
	}
	return s.repo.DeletePlan(ctx, id)
}

// ApprovePlan moves a draft plan to approved
func (s *Service) ApprovePlan(ctx context.Context, id uuid.UUID, version int) (*PlanView, error) {
	plan, err := s.loadVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if plan.Status == PlanApproved {
		return s.view(plan)
	}
	if err := planStates.Transition(plan.Status, PlanApproved); err != nil {
		return nil, err
	}
	newVersion, err := s.repo.UpdatePlanStatus(ctx, id, version, PlanApproved)
	if err != nil {
		s.conflictOrFailure(err, "approve_plan")
		return nil, err
	}
	plan.Status = PlanApproved
	plan.Version = newVersion
	s.logger.Info("Plan approved", zap.String("plan_id", id.String()), zap.Int("version", newVersion))
	return s.view(plan)
}

// PatchApplication edits one application and cascades the change forward
func (s *Service) PatchApplication(ctx context.Context, planID, appID uuid.UUID, req PatchRequest) (*PlanView, error) {
	patch, err := s.resolvePatch(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, planID, req.Version, "patch", func(plan *LimingPlan) ([]LimingApplication, int, error) {
		if patch.Status != nil && *patch.Status != StatusCancelled && plan.Status != PlanApproved {
			return nil, 0, fmt.Errorf("plan %s must be approved before applications are %s: %w", plan.ID, *patch.Status, ErrPlanLocked)
		}
		return ApplyPatch(plan.Applications, appID, patch)
	})
}

// DeleteApplication removes an application and cascades from its successor
func (s *Service) DeleteApplication(ctx context.Context, planID, appID uuid.UUID, version int) (*PlanView, error) {
	return s.mutate(ctx, planID, version, "delete", func(plan *LimingPlan) ([]LimingApplication, int, error) {
		return RemoveApplication(plan.Applications, appID)
	})
}

// AddApplication inserts an application and cascades from it
func (s *Service) AddApplication(ctx context.Context, planID uuid.UUID, req AddApplicationRequest) (*PlanView, error) {
	if req.Year < 1900 || req.Year > 2200 {
		return nil, &agronomy.FieldError{Field: "year", Reason: "must be a calendar year"}
	}
	return s.mutate(ctx, planID, req.Version, "insert", func(plan *LimingPlan) ([]LimingApplication, int, error) {
		product, err := s.productFor(ctx, plan, req)
		if err != nil {
			return nil, 0, err
		}
		a := LimingApplication{
			PlanID:    plan.ID,
			Year:      req.Year,
			Season:    req.Season,
			DosePerHa: req.DosePerHa,
			Status:    StatusPlanned,
		}
		a.SetProduct(product)
		return InsertApplication(plan.Applications, a)
	})
}

// productFor picks the product of a new application: the requested one, or
// the product of the last application, or the reference limestone.
func (s *Service) productFor(ctx context.Context, plan *LimingPlan, req AddApplicationRequest) (agronomy.LimingProduct, error) {
	switch {
	case req.Product != nil:
		return *req.Product, nil
	case req.ProductName != "":
		return s.products.FindProduct(ctx, req.ProductName)
	case len(plan.Applications) > 0:
		return plan.Applications[len(plan.Applications)-1].Product(), nil
	}
	ref, err := s.products.Reference(ctx)
	if err != nil {
		return agronomy.LimingProduct{}, err
	}
	return ref.Limestone, nil
}

// SimulateEdit runs an edit and its cascade without persisting anything
func (s *Service) SimulateEdit(ctx context.Context, planID, appID uuid.UUID, req PatchRequest) (*SimulationView, error) {
	patch, err := s.resolvePatch(ctx, req)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	edited, from, err := ApplyPatch(plan.Applications, appID, patch)
	if err != nil {
		return nil, err
	}
	baseline, err := s.refreshBaseline(ctx, plan)
	if err != nil {
		return nil, err
	}
	if baseline != nil {
		from = 0
	}
	after, err := s.planner.RecalculatePlan(edited, plan.Params(), from)
	if err != nil {
		return nil, err
	}

	view := &SimulationView{
		PlanID:       plan.ID,
		Version:      plan.Version,
		Applications: after,
		Removed:      Removed(plan.Applications, after),
	}
	for _, a := range ChangedTail(plan.Applications, after) {
		view.Changed = append(view.Changed, a.ID)
	}
	return view, nil
}

// RecalculatePlan re-walks a stored plan and persists whatever drifted
func (s *Service) RecalculatePlan(ctx context.Context, id uuid.UUID) (*PlanView, error) {
	if _, err := s.HealPlan(ctx, id); err != nil {
		return nil, err
	}
	return s.GetPlan(ctx, id)
}

// HealPlan re-sorts and re-walks a stored plan from the start, or from a
// newer reading of its parcel, and persists the applications that differ.
// It returns how many were rewritten; a consistent plan is left untouched.
func (s *Service) HealPlan(ctx context.Context, id uuid.UUID) (int, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return 0, err
	}
	baseline, err := s.refreshBaseline(ctx, plan)
	if err != nil {
		return 0, err
	}
	sorted := SortApplications(plan.Applications)
	after, err := s.planner.RecalculatePlan(sorted, plan.Params(), 0)
	if err != nil {
		return 0, fmt.Errorf("plan %s: %w", id, err)
	}
	changes := CascadeChanges{Upserts: ChangedTail(plan.Applications, after), Baseline: baseline}
	if changes.Empty() {
		return 0, nil
	}
	if _, err := s.persist(ctx, plan, changes, "heal"); err != nil {
		return 0, err
	}
	s.logger.Info("Plan healed",
		zap.String("plan_id", id.String()),
		zap.Int("rewritten", len(changes.Upserts)),
		zap.Bool("new_reading", baseline != nil))
	return len(changes.Upserts), nil
}

// HealAll heals every plan and keeps going past failures
func (s *Service) HealAll(ctx context.Context) (int, error) {
	start := s.now()
	ids, err := s.repo.ListPlanIDs(ctx)
	if err != nil {
		return 0, err
	}

	var healed int
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.HealPlan(ctx, id)
		if err != nil {
			s.logger.Error("Failed to heal plan", zap.String("plan_id", id.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if n > 0 {
			healed++
		}
	}
	s.metrics.RecordSweep(s.now().Sub(start), healed)
	return healed, errors.Join(errs...)
}

type editFunc func(plan *LimingPlan) ([]LimingApplication, int, error)

// mutate is the edit cycle: load at the caller's version, apply the pure
// edit, cascade from the earliest affected index and persist the diff.
func (s *Service) mutate(ctx context.Context, planID uuid.UUID, version int, trigger string, edit editFunc) (*PlanView, error) {
	plan, err := s.loadVersion(ctx, planID, version)
	if err != nil {
		return nil, err
	}
	edited, from, err := edit(plan)
	if err != nil {
		return nil, err
	}
	baseline, err := s.refreshBaseline(ctx, plan)
	if err != nil {
		return nil, err
	}
	if baseline != nil {
		from = 0
	}
	after, err := s.planner.RecalculatePlan(edited, plan.Params(), from)
	if err != nil {
		return nil, err
	}

	changes := CascadeChanges{
		Upserts:  ChangedTail(plan.Applications, after),
		Deletes:  Removed(plan.Applications, after),
		Baseline: baseline,
	}
	s.metrics.RecordRecalculation(trigger, len(changes.Upserts))
	if changes.Empty() {
		return s.view(plan)
	}

	newVersion, err := s.persist(ctx, plan, changes, trigger)
	if err != nil {
		return nil, err
	}
	s.recordWarnings(changes.Upserts)

	plan.Applications = after
	plan.Version = newVersion
	return s.view(plan)
}

// persist writes a cascade and converts a rolled back cascade into a
// PartialFailureError.
func (s *Service) persist(ctx context.Context, plan *LimingPlan, changes CascadeChanges, trigger string) (int, error) {
	res, err := s.repo.SaveCascade(ctx, plan.ID, plan.Version, changes)
	if err != nil {
		s.conflictOrFailure(err, trigger)
		return 0, err
	}
	if len(res.Failed) > 0 {
		s.metrics.RecordPersistenceFailure(trigger)
		s.logger.Warn("Cascade rolled back",
			zap.String("plan_id", plan.ID.String()),
			zap.Int("discarded", len(res.Discarded)),
			zap.Int("failed", len(res.Failed)))
		return 0, &PartialFailureError{PlanID: plan.ID, Discarded: res.Discarded, Failed: res.Failed}
	}
	return res.Version, nil
}

// refreshBaseline moves the plan onto the latest reading of its parcel when
// that is not the one the plan was walked from. It returns the new baseline,
// or nil when the plan is current or the parcel has no reading.
func (s *Service) refreshBaseline(ctx context.Context, plan *LimingPlan) (*Baseline, error) {
	reading, err := s.parcels.LatestReading(ctx, plan.ParcelID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if plan.ReadingID != nil && *plan.ReadingID == reading.ID && plan.StartPH == reading.PH {
		return nil, nil
	}
	readingID := reading.ID
	plan.ReadingID = &readingID
	plan.StartPH = reading.PH
	return &Baseline{ReadingID: reading.ID, StartPH: reading.PH}, nil
}

func (s *Service) loadVersion(ctx context.Context, id uuid.UUID, version int) (*LimingPlan, error) {
	if version < 1 {
		return nil, &agronomy.FieldError{Field: "version", Reason: "is required"}
	}
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Version != version {
		s.metrics.RecordConflict()
		return nil, fmt.Errorf("plan %s is at version %d, not %d: %w", id, plan.Version, version, ErrConcurrentModification)
	}
	return plan, nil
}

func (s *Service) resolvePatch(ctx context.Context, req PatchRequest) (ApplicationPatch, error) {
	patch := req.ApplicationPatch
	if req.ProductName != nil {
		p, err := s.products.FindProduct(ctx, *req.ProductName)
		if err != nil {
			return ApplicationPatch{}, err
		}
		patch.Product = &p
	}
	return patch, nil
}

func (s *Service) conflictOrFailure(err error, operation string) {
	if errors.Is(err, ErrConcurrentModification) {
		s.metrics.RecordConflict()
		return
	}
	if !errors.Is(err, ErrNotFound) {
		s.metrics.RecordPersistenceFailure(operation)
		s.logger.Error("Failed to persist plan", zap.String("operation", operation), zap.Error(err))
	}
}

func (s *Service) recordWarnings(apps []LimingApplication) {
	for _, a := range apps {
		for _, w := range a.Warnings {
			s.metrics.RecordWarning(w.Code, string(w.Severity))
		}
	}
}

func (s *Service) view(plan *LimingPlan) (*PlanView, error) {
	v := &PlanView{
		LimingPlan:     plan,
		TotalDosePerHa: plan.TotalDose(),
		TotalProduct:   plan.TotalProduct(),
	}
	for i := range plan.Applications {
		if plan.Applications[i].Status != StatusCancelled {
			v.TotalCost += plan.Applications[i].Cost()
		}
	}
	issues, err := s.planner.Verify(plan.Applications, plan.Params())
	if err != nil && !errors.Is(err, agronomy.ErrInconsistentSequence) {
		return nil, err
	}
	v.Issues = issues
	v.Consistent = err == nil && len(issues) == 0
	return v, nil
}
