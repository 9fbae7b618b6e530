package pickup

import (
	"fmt"
	"strings"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
)

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return invalid(f)
}

func checkItems(f fieldErrors, items []Item) {
	if len(items) == 0 {
		f.add("items", "at least one item is required")
		return
	}
	for i, it := range items {
		key := fmt.Sprintf("items[%d]", i)
		if !it.Material.Known() {
			f.add(key+".materialType", fmt.Sprintf("unknown material %q", it.Material))
		}
		if it.Quantity < 1 {
			f.add(key+".quantity", "must be at least 1")
		}
		switch {
		case !(it.WeightKg >= 0):
			f.add(key+".weightKg", "must not be negative")
		case it.WeightKg > points.MaxWeightKg:
			f.add(key+".weightKg", fmt.Sprintf("must be at most %d", points.MaxWeightKg))
		}
	}
}

func checkWeight(f fieldErrors, w float64) {
	switch {
	case !(w > 0):
		f.add("totalWeightKg", "must be greater than 0")
	case w > points.MaxWeightKg:
		f.add("totalWeightKg", fmt.Sprintf("must be at most %d", points.MaxWeightKg))
	}
}

func checkAddress(f fieldErrors, addr string) {
	if strings.TrimSpace(addr) == "" {
		f.add("address", "is required")
	}
}

func checkSchedule(f fieldErrors, at time.Time, slot TimeSlot) {
	if at.IsZero() {
		f.add("scheduledAt", "is required")
	}
	if !slot.Valid() {
		f.add("timeSlot", fmt.Sprintf("unknown time slot %q", slot))
	}
}

func (c CreateCommand) validate() error {
	f := fieldErrors{}
	if c.OwnerID == "" {
		f.add("ownerId", "is required")
	}
	checkItems(f, c.Items)
	checkWeight(f, c.TotalWeightKg)
	checkAddress(f, c.Address)
	checkSchedule(f, c.ScheduledAt, c.TimeSlot)
	return f.err()
}

// validate checks only the fields the patch sets.
func (p Patch) validate() error {
	f := fieldErrors{}
	if p.Empty() {
		f.add("patch", "no fields to update")
		return f.err()
	}
	if p.Items != nil {
		checkItems(f, *p.Items)
	}
	if p.TotalWeightKg != nil {
		checkWeight(f, *p.TotalWeightKg)
	}
	if p.Address != nil {
		checkAddress(f, *p.Address)
	}
	if p.ScheduledAt != nil && p.ScheduledAt.IsZero() {
		f.add("scheduledAt", "is required")
	}
	if p.TimeSlot != nil && !p.TimeSlot.Valid() {
		f.add("timeSlot", fmt.Sprintf("unknown time slot %q", *p.TimeSlot))
	}
	return f.err()
}
