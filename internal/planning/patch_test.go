package planning

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/pkg/workflows"
)

func threeApps() []LimingApplication {
	return []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, dolomite),
		newApp(2, 2025, SeasonAutumn, 2, dolomite),
		newApp(3, 2026, SeasonSpring, 2, dolomite),
	}
}

func ptr[T any](v T) *T { return &v }

func TestApplicationPatch_Validate(t *testing.T) {
	tests := []struct {
		name  string
		patch ApplicationPatch
		field string
	}{
		{"negative dose", ApplicationPatch{DosePerHa: ptr(-1.0)}, "dose_per_ha"},
		{"year", ApplicationPatch{Year: ptr(99)}, "year"},
		{"season", ApplicationPatch{Season: ptr(Season("winter"))}, "season"},
		{"status", ApplicationPatch{Status: ptr(ApplicationStatus("lost"))}, "status"},
		{"product", ApplicationPatch{Product: &agronomy.LimingProduct{Name: "x", MgOContent: -2, CaOContent: 40}}, "product.mgo_content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fe *agronomy.FieldError
			require.ErrorAs(t, tt.patch.Validate(), &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	assert.ErrorIs(t, ApplicationPatch{}.Validate(), ErrEmptyPatch)
	assert.Equal(t, []PatchField{FieldDose, FieldSeason}, ApplicationPatch{DosePerHa: ptr(1.0), Season: ptr(SeasonSummer)}.Fields())
}

func TestApplyPatch_DoseKeepsPosition(t *testing.T) {
	apps := threeApps()
	out, from, err := ApplyPatch(apps, apps[1].ID, ApplicationPatch{DosePerHa: ptr(4.0)})
	require.NoError(t, err)

	assert.Equal(t, 1, from)
	assert.Equal(t, 4.0, out[1].DosePerHa)
	assert.Equal(t, 2.0, apps[1].DosePerHa, "input must not be modified")
}

func TestApplyPatch_MoveEarlier(t *testing.T) {
	apps := threeApps()
	out, from, err := ApplyPatch(apps, apps[2].ID, ApplicationPatch{Year: ptr(2025), Season: ptr(SeasonSummer)})
	require.NoError(t, err)

	assert.Equal(t, 1, from)
	require.NoError(t, CheckOrder(out))
	assert.Equal(t, []uuid.UUID{apps[0].ID, apps[2].ID, apps[1].ID}, []uuid.UUID{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, 2, out[1].Sequence)
}

func TestApplyPatch_MoveLaterInvalidatesOldIndex(t *testing.T) {
	apps := threeApps()
	out, from, err := ApplyPatch(apps, apps[0].ID, ApplicationPatch{Year: ptr(2027)})
	require.NoError(t, err)

	assert.Equal(t, 0, from)
	assert.Equal(t, apps[0].ID, out[2].ID)
	assert.Equal(t, 3, out[2].Sequence)
}

func TestApplyPatch_MoveIntoOccupiedSlotGoesLast(t *testing.T) {
	apps := threeApps()
	out, _, err := ApplyPatch(apps, apps[0].ID, ApplicationPatch{Season: ptr(SeasonAutumn)})
	require.NoError(t, err)

	assert.Equal(t, apps[1].ID, out[0].ID)
	assert.Equal(t, apps[0].ID, out[1].ID)
}

func TestApplyPatch_StatusTransitions(t *testing.T) {
	apps := threeApps()

	out, _, err := ApplyPatch(apps, apps[0].ID, ApplicationPatch{Status: ptr(StatusOrdered)})
	require.NoError(t, err)
	assert.Equal(t, StatusOrdered, out[0].Status)

	_, _, err = ApplyPatch(apps, apps[0].ID, ApplicationPatch{Status: ptr(StatusApplied)})
	var te *workflows.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "planned", te.From)

	apps[2].Status = StatusApplied
	_, _, err = ApplyPatch(apps, apps[2].ID, ApplicationPatch{DosePerHa: ptr(1.0)})
	assert.ErrorIs(t, err, ErrApplicationLocked)
}

func TestApplyPatch_UnknownApplication(t *testing.T) {
	_, _, err := ApplyPatch(threeApps(), uuid.New(), ApplicationPatch{DosePerHa: ptr(1.0)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveApplication(t *testing.T) {
	apps := threeApps()
	out, from, err := RemoveApplication(apps, apps[1].ID)
	require.NoError(t, err)

	assert.Equal(t, 1, from)
	require.Len(t, out, 2)
	assert.Equal(t, apps[2].ID, out[1].ID)
	assert.Equal(t, 2, out[1].Sequence)
	assert.Equal(t, []uuid.UUID{apps[1].ID}, Removed(apps, out))

	apps[0].Status = StatusApplied
	_, _, err = RemoveApplication(apps, apps[0].ID)
	assert.ErrorIs(t, err, ErrApplicationLocked)
}

func TestInsertApplication(t *testing.T) {
	apps := threeApps()
	a := newApp(0, 2025, SeasonSummer, 1.5, limestone)
	a.ID = uuid.Nil

	out, at, err := InsertApplication(apps, a)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 1, at)
	assert.NotEqual(t, uuid.Nil, out[at].ID)
	assert.Equal(t, StatusPlanned, out[at].Status)
	require.NoError(t, CheckOrder(out))

	_, _, err = InsertApplication(apps, newApp(0, 2025, "winter", 1, limestone))
	assert.ErrorIs(t, err, agronomy.ErrInputOutOfRange)
}

func TestPatchCascadeEndToEnd(t *testing.T) {
	p := newTestPlanner(t)
	base, err := p.RecalculatePlan(threeApps(), mediumParams(), 0)
	require.NoError(t, err)

	edited, from, err := ApplyPatch(base, base[0].ID, ApplicationPatch{DosePerHa: ptr(1.0)})
	require.NoError(t, err)
	out, err := p.RecalculatePlan(edited, mediumParams(), from)
	require.NoError(t, err)

	assert.Len(t, ChangedTail(base, out), 3)
	assert.Empty(t, Removed(base, out))
	for i := range out {
		assert.Less(t, out[i].PHAfter, base[i].PHAfter)
	}
}
