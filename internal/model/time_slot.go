package model

import (
	"fmt"
	"time"
)

// TimeSlot интервал [Start, End) запланированной консультации
type TimeSlot struct {
	start time.Time
	end   time.Time
}

// NewTimeSlot создаёт слот, end должен быть строго позже start
func NewTimeSlot(start, end time.Time) (TimeSlot, error) {
	if !end.After(start) {
		return TimeSlot{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidTimeSlot,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeSlot{start: start.UTC(), end: end.UTC()}, nil
}

func (s TimeSlot) Start() time.Time { return s.start }

func (s TimeSlot) End() time.Time { return s.end }

// Duration длительность слота
func (s TimeSlot) Duration() time.Duration {
	return s.end.Sub(s.start)
}

// Overlaps проверяет пересечение двух полуоткрытых интервалов
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.start.Before(other.end) && other.start.Before(s.end)
}

// Equal сравнивает слоты по значению
func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.start.Equal(other.start) && s.end.Equal(other.end)
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s-%s", s.start.Format("02.01.2006 15:04"), s.end.Format("15:04"))
}
