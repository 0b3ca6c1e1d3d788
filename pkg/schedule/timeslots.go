package schedule

import "time"

// TimeSlot is one of the four fixed daily windows used to spread scheduling
// load. Weight expresses how desirable the window is for scheduling; lower
// weight slots get scans pushed further out.
type TimeSlot struct {
	StartHour int
	EndHour   int
	Weight    float64
}

// DefaultTimeSlots favors the night window and backs off during the
// afternoon peak.
func DefaultTimeSlots() []TimeSlot {
	return []TimeSlot{
		{StartHour: 0, EndHour: 6, Weight: 1.0},
		{StartHour: 6, EndHour: 12, Weight: 0.8},
		{StartHour: 12, EndHour: 18, Weight: 0.6},
		{StartHour: 18, EndHour: 24, Weight: 0.7},
	}
}

// SlotWeight returns the weight of the slot containing t. Falls back to 1.0
// if the slot table does not cover the hour.
func (p *Policy) SlotWeight(t time.Time) float64 {
	hour := t.Hour()
	for _, slot := range p.TimeSlots {
		if hour >= slot.StartHour && hour < slot.EndHour {
			return slot.Weight
		}
	}
	return 1.0
}
