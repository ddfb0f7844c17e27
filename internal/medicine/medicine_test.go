package medicine

import (
	"testing"

	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyTagSplit(t *testing.T) {
	t.Parallel()

	timing, meal, ok := FrequencyTag("before_breakfast").Split()
	require.True(t, ok)
	assert.Equal(t, Before, timing)
	assert.Equal(t, Breakfast, meal)

	timing, meal, ok = FrequencyTag("after_brunch").Split()
	require.True(t, ok)
	assert.Equal(t, After, timing)
	assert.Equal(t, Meal("brunch"), meal)
	assert.False(t, FrequencyTag("after_brunch").Valid())

	_, _, ok = FrequencyTag("with_lunch").Split()
	assert.False(t, ok)
}

func TestParseFrequencies(t *testing.T) {
	t.Parallel()

	tags, err := ParseFrequencies([]string{" before_breakfast", "AFTER_LUNCH", "before_breakfast", ""})
	require.NoError(t, err)
	assert.Equal(t, []FrequencyTag{"before_breakfast", "after_lunch"}, tags)

	_, err = ParseFrequencies([]string{"before_breakfast", "at_midnight", "after_supper"})
	var v *errs.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "frequency", v.Field)
	assert.Contains(t, v.Reason, "after_supper, at_midnight")

	_, err = ParseFrequencies(nil)
	assert.True(t, errs.IsValidation(err))
}

func TestClockArithmetic(t *testing.T) {
	t.Parallel()

	m, err := ParseClock("07:00")
	require.NoError(t, err)
	assert.Equal(t, 420, m)

	for _, bad := range []string{"7:00", "24:00", "12:60", "noon", "12:00:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "06:45", FormatClock(420-15))
	assert.Equal(t, "23:50", FormatClock(-10))
	assert.Equal(t, "00:05", FormatClock(MinutesPerDay+5))
}

func validSettings() Settings {
	return Settings{
		MealTimes: map[Meal]Window{
			Breakfast: {Start: "07:00", End: "10:00"},
			Lunch:     {Start: "12:00", End: "14:00"},
			Dinner:    {Start: "19:00", End: "21:00"},
		},
		Timezone:               "Asia/Kolkata",
		ReminderAdvanceMinutes: 15,
		Trackers:               []string{"tracker-1"},
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, validSettings().Validate())

	cases := map[string]func(*Settings){
		"meal_times.lunch.start": func(s *Settings) { s.MealTimes[Lunch] = Window{Start: "1200", End: "14:00"} },
		"meal_times.dinner":      func(s *Settings) { s.MealTimes[Dinner] = Window{Start: "22:00", End: "01:00"} },
		"meal_times.breakfast":   func(s *Settings) { delete(s.MealTimes, Breakfast) },
		"meal_times.brunch":      func(s *Settings) { s.MealTimes["brunch"] = Window{Start: "10:00", End: "11:00"} },
		"timezone":               func(s *Settings) { s.Timezone = "Mars/Olympus" },
		"reminder_advance_minutes": func(s *Settings) {
			s.ReminderAdvanceMinutes = 61
		},
	}
	for field, mutate := range cases {
		s := validSettings()
		mutate(&s)
		var v *errs.ValidationError
		require.ErrorAs(t, s.Validate(), &v, field)
		assert.Equal(t, field, v.Field)
	}
}

func TestSettingsHelpers(t *testing.T) {
	t.Parallel()
	s := validSettings()
	assert.True(t, s.IsTracker("tracker-1"))
	assert.False(t, s.IsTracker("user-1"))
	assert.Equal(t, "Asia/Kolkata", s.Location().String())

	s.Timezone = "Nowhere/Special"
	assert.Equal(t, "UTC", s.Location().String())
}
