// Package medicine holds the tenant's medicine registry and meal-window
// settings, the authoritative inputs of schedule compilation.
package medicine

import (
	"sort"
	"strings"
	"time"

	"github.com/pathakanu/medguardian/internal/errs"
)

// Meal names a meal window.
type Meal string

const (
	Breakfast Meal = "breakfast"
	Lunch     Meal = "lunch"
	Dinner    Meal = "dinner"
)

// Meals lists the configurable meal windows in day order.
var Meals = []Meal{Breakfast, Lunch, Dinner}

// Timing places a dose relative to its meal.
type Timing string

const (
	Before Timing = "before"
	After  Timing = "after"
)

// FrequencyTag is one of {before,after}_{breakfast,lunch,dinner}.
type FrequencyTag string

// Split separates a tag into timing and meal name. ok is false when the tag has
// no before_/after_ prefix. The meal name is not checked.
func (t FrequencyTag) Split() (timing Timing, meal Meal, ok bool) {
	s := string(t)
	switch {
	case strings.HasPrefix(s, "before_"):
		return Before, Meal(strings.TrimPrefix(s, "before_")), true
	case strings.HasPrefix(s, "after_"):
		return After, Meal(strings.TrimPrefix(s, "after_")), true
	}
	return "", "", false
}

// Valid reports whether t is one of the six known tags.
func (t FrequencyTag) Valid() bool {
	_, meal, ok := t.Split()
	if !ok {
		return false
	}
	for _, m := range Meals {
		if m == meal {
			return true
		}
	}
	return false
}

// ParseFrequencies validates raw tags, trims them and drops duplicates.
func ParseFrequencies(raw []string) ([]FrequencyTag, error) {
	seen := make(map[FrequencyTag]struct{}, len(raw))
	out := make([]FrequencyTag, 0, len(raw))
	var invalid []string
	for _, r := range raw {
		tag := FrequencyTag(strings.ToLower(strings.TrimSpace(r)))
		if tag == "" {
			continue
		}
		if !tag.Valid() {
			invalid = append(invalid, string(tag))
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, errs.Invalid("frequency", "unknown tags %s", strings.Join(invalid, ", "))
	}
	if len(out) == 0 {
		return nil, errs.Invalid("frequency", "at least one tag is required")
	}
	return out, nil
}

// Medicine is a tracked medicine bound to one target.
type Medicine struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Dosage    string         `json:"dosage"`
	Frequency []FrequencyTag `json:"frequency"`
	Inventory int            `json:"inventory"`
	TargetID  string         `json:"target_id"`
	AddedBy   string         `json:"added_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
}

// NewMedicine is the input of Repo.Add.
type NewMedicine struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency []string `json:"frequency"`
	Inventory int      `json:"inventory"`
	TargetID  string   `json:"target_id"`
}

func (n NewMedicine) validate() ([]FrequencyTag, error) {
	if strings.TrimSpace(n.Name) == "" {
		return nil, errs.Invalid("name", "required")
	}
	if len(n.Name) > 100 {
		return nil, errs.Invalid("name", "at most 100 characters")
	}
	if strings.TrimSpace(n.Dosage) == "" {
		return nil, errs.Invalid("dosage", "required")
	}
	if strings.TrimSpace(n.TargetID) == "" {
		return nil, errs.Invalid("target_id", "required")
	}
	if n.Inventory < 0 {
		return nil, errs.Invalid("inventory", "must be >= 0")
	}
	return ParseFrequencies(n.Frequency)
}

// Patch updates selected fields of a medicine. Nil fields are left unchanged.
type Patch struct {
	Name      *string  `json:"name,omitempty"`
	Dosage    *string  `json:"dosage,omitempty"`
	Frequency []string `json:"frequency,omitempty"`
	TargetID  *string  `json:"target_id,omitempty"`
}
