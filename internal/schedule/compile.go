// Package schedule derives reminder slots from medicines and meal windows and
// selects the slots due at a given time.
package schedule

import (
	"fmt"

	"github.com/pathakanu/medguardian/internal/medicine"
)

// Slot is a derived reminder definition for one medicine and frequency tag.
type Slot struct {
	Key          string                `json:"id"`
	MedicineID   string                `json:"medicine_id"`
	MedicineName string                `json:"medicine_name"`
	TargetID     string                `json:"target_id"`
	Frequency    medicine.FrequencyTag `json:"frequency"`
	Meal         medicine.Meal         `json:"meal_time"`
	Timing       medicine.Timing       `json:"timing"`
	ReminderTime string                `json:"reminder_time"`
	Timezone     string                `json:"timezone"`
	Active       bool                  `json:"active"`
}

// SlotKey is the deterministic identity of a slot.
func SlotKey(medicineID string, tag medicine.FrequencyTag) string {
	return fmt.Sprintf("sched_%s_%s", medicineID, tag)
}

// Skip explains why a tag produced no slot.
type Skip struct {
	MedicineID string
	Tag        medicine.FrequencyTag
	Reason     string
}

// Compile derives one slot per medicine and frequency tag. It is pure: equal
// inputs give equal outputs, slot keys included. Tags whose meal is not
// configured are skipped, not rejected.
func Compile(meds []medicine.Medicine, cfg medicine.Settings) ([]Slot, []Skip) {
	var (
		slots []Slot
		skips []Skip
	)
	for _, med := range meds {
		for _, tag := range med.Frequency {
			slot, reason := compileOne(med, tag, cfg)
			if reason != "" {
				skips = append(skips, Skip{MedicineID: med.ID, Tag: tag, Reason: reason})
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots, skips
}

func compileOne(med medicine.Medicine, tag medicine.FrequencyTag, cfg medicine.Settings) (Slot, string) {
	timing, meal, ok := tag.Split()
	if !ok {
		return Slot{}, "unknown timing"
	}
	window, ok := cfg.MealTimes[meal]
	if !ok {
		return Slot{}, fmt.Sprintf("unknown meal %q", meal)
	}

	var reminderTime string
	switch timing {
	case medicine.Before:
		start, err := medicine.ParseClock(window.Start)
		if err != nil {
			return Slot{}, err.Error()
		}
		reminderTime = medicine.FormatClock(start - cfg.ReminderAdvanceMinutes)
	case medicine.After:
		if _, err := medicine.ParseClock(window.End); err != nil {
			return Slot{}, err.Error()
		}
		reminderTime = window.End
	}

	return Slot{
		Key:          SlotKey(med.ID, tag),
		MedicineID:   med.ID,
		MedicineName: med.Name,
		TargetID:     med.TargetID,
		Frequency:    tag,
		Meal:         meal,
		Timing:       timing,
		ReminderTime: reminderTime,
		Timezone:     cfg.Timezone,
		Active:       true,
	}, ""
}
