package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
)

const dateTimeLayout = "02.01.2006 15:04"

// Ограничения длительности плановой консультации
const (
	MinSlotMinutes = 15
	MaxSlotMinutes = 480
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateTimeLayout)
}

// FormatSlot форматирует слот: "15.01.2030 10:00-11:00"
func FormatSlot(slot *model.TimeSlot, loc *time.Location) string {
	if slot == nil {
		return "без времени"
	}
	start, end := slot.Start().In(loc), slot.End().In(loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s-%s", start.Format(dateTimeLayout), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format(dateTimeLayout), end.Format(dateTimeLayout))
}

// FormatDuration форматирует длительность
func FormatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// ParseSlot разбирает ввод "ДД.ММ.ГГГГ ЧЧ:ММ минуты" в часовом поясе loc.
// Слот должен начинаться после now.
func ParseSlot(input string, loc *time.Location, now time.Time) (model.TimeSlot, error) {
	fields := strings.Fields(input)
	if len(fields) != 3 {
		return model.TimeSlot{}, fmt.Errorf("ожидается формат ДД.ММ.ГГГГ ЧЧ:ММ минуты")
	}

	start, err := time.ParseInLocation(dateTimeLayout, fields[0]+" "+fields[1], loc)
	if err != nil {
		return model.TimeSlot{}, fmt.Errorf("неверная дата или время")
	}

	minutes, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.TimeSlot{}, fmt.Errorf("длительность должна быть числом минут")
	}
	if minutes < MinSlotMinutes || minutes > MaxSlotMinutes {
		return model.TimeSlot{}, fmt.Errorf("длительность от %d до %d минут", MinSlotMinutes, MaxSlotMinutes)
	}
	if !start.After(now) {
		return model.TimeSlot{}, fmt.Errorf("время должно быть в будущем")
	}

	return model.NewTimeSlot(start, start.Add(time.Duration(minutes)*time.Minute))
}
