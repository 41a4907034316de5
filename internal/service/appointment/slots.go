package appointment

import (
	"fmt"
	"time"
)

const (
	firstSlot    = 9 * time.Hour
	lastSlot     = 14 * time.Hour
	slotInterval = 30 * time.Minute

	dateLayout = "2006-01-02"
	slotLayout = "15:04"
)

// GenerateTimeSlots returns the bookable half-hour labels, 09:00 through 14:00.
func GenerateTimeSlots() []string {
	slots := make([]string, 0, int((lastSlot-firstSlot)/slotInterval)+1)
	for d := firstSlot; d <= lastSlot; d += slotInterval {
		slots = append(slots, fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60))
	}
	return slots
}

// IsSlot reports whether label is one of the bookable slot labels.
func IsSlot(label string) bool {
	for _, s := range GenerateTimeSlots() {
		if s == label {
			return true
		}
	}
	return false
}

// IsCalendarDate reports whether s is a YYYY-MM-DD date.
func IsCalendarDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// dayStart parses a calendar date as midnight in loc.
func dayStart(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, date, loc)
}

// slotInstant combines a date and a slot label in loc.
func slotInstant(date, slot string, loc *time.Location) (time.Time, error) {
	if !IsSlot(slot) {
		return time.Time{}, fmt.Errorf("%q is not a bookable time slot", slot)
	}
	return time.ParseInLocation(dateLayout+" "+slotLayout, date+" "+slot, loc)
}
