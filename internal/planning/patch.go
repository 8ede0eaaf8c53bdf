package planning

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/apierror"
	"agrolime/liming-portal-backend/pkg/workflows"
)

var (
	ErrNotFound               = apierror.ErrNotFound
	ErrApplicationLocked      = apierror.NewConflict("application is applied or cancelled and can no longer be edited")
	ErrPlanLocked             = apierror.NewConflict("plan status does not allow this change")
	ErrConcurrentModification = apierror.NewConflict("plan was modified concurrently")
	ErrEmptyPatch             = apierror.NewBadRequest("patch changes nothing")
)

// applicationStates is the lifecycle of one application
var applicationStates = workflows.NewStateMachine("application", workflows.Transitions[ApplicationStatus]{
	StatusPlanned:   {StatusOrdered, StatusCancelled},
	StatusOrdered:   {StatusApplied, StatusCancelled},
	StatusApplied:   {},
	StatusCancelled: {},
})

// planStates is the lifecycle of a plan
var planStates = workflows.NewStateMachine("plan", workflows.Transitions[PlanStatus]{
	PlanDraft:    {PlanApproved},
	PlanApproved: {},
})

// PatchField enumerates the application fields an edit may touch
type PatchField string

const (
	FieldDose    PatchField = "dose_per_ha"
	FieldProduct PatchField = "product"
	FieldYear    PatchField = "year"
	FieldSeason  PatchField = "season"
	FieldStatus  PatchField = "status"
)

// ApplicationPatch is a typed partial edit of one application
type ApplicationPatch struct {
	DosePerHa *float64                `json:"dose_per_ha,omitempty"`
	Product   *agronomy.LimingProduct `json:"product,omitempty"`
	Year      *int                    `json:"year,omitempty"`
	Season    *Season                 `json:"season,omitempty"`
	Status    *ApplicationStatus      `json:"status,omitempty"`
}

// Fields lists the fields the patch sets
func (p ApplicationPatch) Fields() []PatchField {
	var out []PatchField
	if p.DosePerHa != nil {
		out = append(out, FieldDose)
	}
	if p.Product != nil {
		out = append(out, FieldProduct)
	}
	if p.Year != nil {
		out = append(out, FieldYear)
	}
	if p.Season != nil {
		out = append(out, FieldSeason)
	}
	if p.Status != nil {
		out = append(out, FieldStatus)
	}
	return out
}

// Moves reports whether the patch can change the position of the application
func (p ApplicationPatch) Moves() bool {
	return p.Year != nil || p.Season != nil
}

// Validate checks every set field before the patch reaches the calculator
func (p ApplicationPatch) Validate() error {
	if len(p.Fields()) == 0 {
		return ErrEmptyPatch
	}
	if p.DosePerHa != nil && (*p.DosePerHa < 0 || math.IsNaN(*p.DosePerHa)) {
		return &agronomy.FieldError{Field: string(FieldDose), Reason: "must not be negative"}
	}
	if p.Product != nil {
		if err := p.Product.Validate(); err != nil {
			return err
		}
	}
	if p.Year != nil && (*p.Year < 1900 || *p.Year > 2200) {
		return &agronomy.FieldError{Field: string(FieldYear), Reason: "must be a calendar year"}
	}
	if p.Season != nil && !p.Season.Valid() {
		return &agronomy.FieldError{Field: string(FieldSeason), Reason: fmt.Sprintf("unknown season %q", *p.Season)}
	}
	if p.Status != nil && !applicationStates.Known(*p.Status) {
		return &agronomy.FieldError{Field: string(FieldStatus), Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	return nil
}

// ApplyPatch applies a validated patch to the application with the given id
// and returns the re-sorted sequence plus the earliest index whose chain the
// edit invalidated. The input is never modified.
func ApplyPatch(apps []LimingApplication, id uuid.UUID, patch ApplicationPatch) ([]LimingApplication, int, error) {
	if err := patch.Validate(); err != nil {
		return nil, 0, err
	}
	i := indexOf(apps, id)
	if i < 0 {
		return nil, 0, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}

	out := cloneApplications(apps)
	a := &out[i]
	if !a.Status.Active() {
		return nil, 0, fmt.Errorf("application %s: %w", id, ErrApplicationLocked)
	}
	if patch.Status != nil {
		if err := applicationStates.Transition(a.Status, *patch.Status); err != nil {
			return nil, 0, err
		}
		a.Status = *patch.Status
	}
	if patch.DosePerHa != nil {
		a.DosePerHa = *patch.DosePerHa
	}
	if patch.Product != nil {
		a.SetProduct(*patch.Product)
	}
	if patch.Year != nil {
		a.Year = *patch.Year
	}
	if patch.Season != nil {
		a.Season = *patch.Season
	}
	if !patch.Moves() {
		return out, i, nil
	}

	// a moved application sorts after others in its new slot
	a.Sequence = math.MaxInt32
	sorted := SortApplications(out)
	j := indexOf(sorted, id)
	return sorted, min(i, j), nil
}

// RemoveApplication deletes an active application; its successor inherits
// the invalidated index.
func RemoveApplication(apps []LimingApplication, id uuid.UUID) ([]LimingApplication, int, error) {
	i := indexOf(apps, id)
	if i < 0 {
		return nil, 0, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	if apps[i].Status == StatusApplied {
		return nil, 0, fmt.Errorf("application %s: %w", id, ErrApplicationLocked)
	}
	out := cloneApplications(apps)
	out = slices.Delete(out, i, i+1)
	for k := range out {
		out[k].Sequence = k + 1
	}
	return out, i, nil
}

// InsertApplication adds a new application and returns the sequence with the
// index it landed on.
func InsertApplication(apps []LimingApplication, a LimingApplication) ([]LimingApplication, int, error) {
	if !a.Season.Valid() {
		return nil, 0, &agronomy.FieldError{Field: "season", Reason: fmt.Sprintf("unknown season %q", a.Season)}
	}
	if a.DosePerHa < 0 || math.IsNaN(a.DosePerHa) {
		return nil, 0, &agronomy.FieldError{Field: "dose_per_ha", Reason: "must not be negative"}
	}
	if err := a.Product().Validate(); err != nil {
		return nil, 0, err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPlanned
	}
	a.Sequence = math.MaxInt32
	out := SortApplications(append(cloneApplications(apps), a))
	return out, indexOf(out, a.ID), nil
}

// ChangedTail returns the applications of after that are new or differ from
// their stored version in before.
func ChangedTail(before, after []LimingApplication) []LimingApplication {
	stored := make(map[uuid.UUID]LimingApplication, len(before))
	for _, a := range before {
		stored[a.ID] = a
	}
	var changed []LimingApplication
	for _, a := range after {
		old, ok := stored[a.ID]
		if !ok || !sameApplication(old, a) {
			changed = append(changed, a)
		}
	}
	return changed
}

// Removed returns the ids present in before but missing from after
func Removed(before, after []LimingApplication) []uuid.UUID {
	keep := make(map[uuid.UUID]bool, len(after))
	for _, a := range after {
		keep[a.ID] = true
	}
	var gone []uuid.UUID
	for _, a := range before {
		if !keep[a.ID] {
			gone = append(gone, a.ID)
		}
	}
	return gone
}

func sameApplication(a, b LimingApplication) bool {
	return a.Sequence == b.Sequence &&
		a.Year == b.Year &&
		a.Season == b.Season &&
		a.Status == b.Status &&
		a.Product() == b.Product() &&
		a.DosePerHa == b.DosePerHa &&
		a.TotalDose == b.TotalDose &&
		a.CaOPerHa == b.CaOPerHa &&
		a.MgOPerHa == b.MgOPerHa &&
		a.EffectiveCaOPerHa == b.EffectiveCaOPerHa &&
		a.PHBefore == b.PHBefore &&
		a.PHAfter == b.PHAfter &&
		a.Note == b.Note &&
		slices.Equal(a.Warnings, b.Warnings)
}

func indexOf(apps []LimingApplication, id uuid.UUID) int {
	return slices.IndexFunc(apps, func(a LimingApplication) bool { return a.ID == id })
}
