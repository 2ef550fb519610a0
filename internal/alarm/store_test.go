package alarm

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewStore(fs, "data/alarms.json", zap.NewNop()), fs
}

func morningPill() Alarm {
	return Alarm{
		Medication: "Ibuprofeno",
		DosageMg:   400,
		Time:       "08:30",
		Active:     true,
		Days:       []string{DAY_MONDAY, DAY_WEDNESDAY},
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store, _ := newTestStore()
	alarms, err := store.Load()
	require.NoError(t, err)
	assert.NotNil(t, alarms)
	assert.Empty(t, alarms)
}

func TestStoreCRUD(t *testing.T) {

	require := require.New(t)

	store, fs := newTestStore()

	added, err := store.Add(morningPill())
	require.NoError(err)
	require.NotEmpty(added.ID)

	second, err := store.Add(Alarm{Medication: "Omeprazol", Time: "21:00"})
	require.NoError(err)
	require.NotEqual(added.ID, second.ID)
	require.Equal([]string{}, second.Days)

	exists, err := afero.Exists(fs, "data/alarms.json")
	require.NoError(err)
	require.True(exists)

	alarms, err := store.Load()
	require.NoError(err)
	require.Equal([]Alarm{added, second}, alarms)

	changed := morningPill()
	changed.Active = false
	updated, err := store.Update(added.ID, changed)
	require.NoError(err)
	require.Equal(added.ID, updated.ID)
	require.False(updated.Active)

	_, err = store.Update("missing", changed)
	require.ErrorIs(err, ErrAlarmNotFound)

	require.NoError(store.Delete(second.ID))
	require.ErrorIs(store.Delete(second.ID), ErrAlarmNotFound)

	alarms, err = store.Load()
	require.NoError(err)
	require.Equal([]Alarm{updated}, alarms)

	require.NoError(store.Clear())
	// clearing twice is fine
	require.NoError(store.Clear())
	alarms, err = store.Load()
	require.NoError(err)
	require.Empty(alarms)
}

func TestStoreSaveReplacesList(t *testing.T) {
	store, _ := newTestStore()
	a := morningPill()
	a.ID = "fixed"
	require.NoError(t, store.Save([]Alarm{a}))

	alarms, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Alarm{a}, alarms)

	bad := morningPill()
	bad.Time = "8:30"
	assert.ErrorIs(t, store.Save([]Alarm{bad}), ErrInvalidAlarm)
}

func TestStoreCorruptFile(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "data/alarms.json", []byte("{not json"), 0o644))
	_, err := store.Load()
	assert.Error(t, err)
}

func TestAlarmValidate(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(morningPill().Validate())

	for _, tm := range []string{"", "24:00", "12:60", "7:05", "noon"} {
		a := morningPill()
		a.Time = tm
		assert.ErrorIs(a.Validate(), ErrInvalidAlarm, tm)
	}
	for _, tm := range []string{"00:00", "23:59", "12:05"} {
		a := morningPill()
		a.Time = tm
		assert.NoError(a.Validate(), tm)
	}

	a := morningPill()
	a.Medication = ""
	assert.ErrorIs(a.Validate(), ErrInvalidAlarm)

	a = morningPill()
	a.Days = []string{"MON"}
	assert.ErrorIs(a.Validate(), ErrInvalidAlarm)

	a = morningPill()
	a.DosageMg = -1
	assert.ErrorIs(a.Validate(), ErrInvalidAlarm)
}

func TestNextOccurrence(t *testing.T) {

	assert := assert.New(t)

	// 2024-01-07 is a Sunday
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)

	next, ok := NextOccurrence(morningPill(), sunday, time.UTC)
	assert.True(ok)
	assert.Equal(time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC), next)

	mondayLate := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	next, ok = NextOccurrence(morningPill(), mondayLate, time.UTC)
	assert.True(ok)
	assert.Equal(time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC), next)

	// alarm time is wall clock time in the configured zone
	plusTwo := time.FixedZone("UTC+2", 2*60*60)
	next, ok = NextOccurrence(morningPill(), sunday, plusTwo)
	assert.True(ok)
	assert.True(time.Date(2024, 1, 8, 6, 30, 0, 0, time.UTC).Equal(next))

	inactive := morningPill()
	inactive.Active = false
	_, ok = NextOccurrence(inactive, sunday, time.UTC)
	assert.False(ok)

	noDays := morningPill()
	noDays.Days = nil
	_, ok = NextOccurrence(noDays, sunday, time.UTC)
	assert.False(ok)
}

func TestCronExpression(t *testing.T) {
	expr, ok := CronExpression(morningPill())
	assert.True(t, ok)
	assert.Equal(t, "0 30 8 ? * MON,WED", expr)
}

func TestStoreUpdateSaveFailure(t *testing.T) {

	store, fs := newTestStore()
	added, err := store.Add(morningPill())
	require.NoError(t, err)

	readOnly := NewStore(afero.NewReadOnlyFs(fs), "data/alarms.json", zap.NewNop())
	updated, err := readOnly.Update(added.ID, morningPill())
	assert.Error(t, err)
	assert.Equal(t, Alarm{}, updated)

	alarms, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Alarm{added}, alarms)
}
