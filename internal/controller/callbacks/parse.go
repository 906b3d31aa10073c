package callbacks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
)

var ErrInvalidFormat = errors.New("invalid callback format")

// Action разобранная callback data
type Action struct {
	Prefix string
	ID     uuid.UUID
	Score  int
}

var prefixes = []string{
	keyboard.BookEmergency,
	keyboard.BookScheduled,
	keyboard.Confirm,
	keyboard.Start,
	keyboard.Complete,
	keyboard.CancelConsultation,
	keyboard.Rate,
}

// ParseCallback "confirm:<uuid>" -> Action{Prefix: "confirm:", ID: <uuid>}
func ParseCallback(data string) (Action, error) {
	for _, prefix := range prefixes {
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		rest := strings.TrimPrefix(data, prefix)

		if prefix == keyboard.Rate {
			return parseRate(rest)
		}

		id, err := uuid.Parse(rest)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %s", ErrInvalidFormat, data)
		}
		return Action{Prefix: prefix, ID: id}, nil
	}

	return Action{}, fmt.Errorf("%w: unknown prefix in %q", ErrInvalidFormat, data)
}

// parseRate "<uuid>:<score>"
func parseRate(rest string) (Action, error) {
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return Action{}, fmt.Errorf("%w: rate without score", ErrInvalidFormat)
	}

	id, err := uuid.Parse(rest[:idx])
	if err != nil {
		return Action{}, fmt.Errorf("%w: rate id", ErrInvalidFormat)
	}
	score, err := strconv.Atoi(rest[idx+1:])
	if err != nil || score < model.MinRating || score > model.MaxRating {
		return Action{}, fmt.Errorf("%w: rate score", ErrInvalidFormat)
	}

	return Action{Prefix: keyboard.Rate, ID: id, Score: score}, nil
}
