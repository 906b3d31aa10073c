package model

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func testPrice(t *testing.T) Price {
	t.Helper()
	p, err := NewPrice(300000, "RUB")
	require.NoError(t, err)
	return p
}

func bookScheduled(t *testing.T, client, lawyer uuid.UUID) *Consultation {
	t.Helper()
	slot, err := NewTimeSlot(testNow.Add(24*time.Hour), testNow.Add(25*time.Hour))
	require.NoError(t, err)
	c, err := Book(BookParams{
		ClientID: client,
		LawyerID: lawyer,
		Type:     ConsultationTypeScheduled,
		Slot:     &slot,
		Price:    testPrice(t),
	}, testNow)
	require.NoError(t, err)
	return c
}

func eventNames(c *Consultation) []EventName {
	var names []EventName
	for _, e := range c.PendingEvents() {
		names = append(names, e.Name())
	}
	return names
}

func TestBookValidation(t *testing.T) {
	client, lawyer := uuid.New(), uuid.New()
	price := testPrice(t)
	slot, err := NewTimeSlot(testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	badSlot := TimeSlot{start: testNow, end: testNow}

	tests := []struct {
		name    string
		params  BookParams
		wantErr error
	}{
		{"scheduled ok", BookParams{client, lawyer, ConsultationTypeScheduled, &slot, price}, nil},
		{"emergency ok", BookParams{client, lawyer, ConsultationTypeEmergency, nil, price}, nil},
		{"scheduled without slot", BookParams{client, lawyer, ConsultationTypeScheduled, nil, price}, ErrInvalidConsultation},
		{"emergency with slot", BookParams{client, lawyer, ConsultationTypeEmergency, &slot, price}, ErrInvalidConsultation},
		{"broken slot", BookParams{client, lawyer, ConsultationTypeScheduled, &badSlot, price}, ErrInvalidTimeSlot},
		{"unknown type", BookParams{client, lawyer, "walk-in", nil, price}, ErrInvalidConsultation},
		{"same party", BookParams{client, client, ConsultationTypeEmergency, nil, price}, ErrInvalidConsultation},
		{"missing lawyer", BookParams{client, uuid.Nil, ConsultationTypeEmergency, nil, price}, ErrInvalidConsultation},
		{"zero price value", BookParams{client, lawyer, ConsultationTypeEmergency, nil, Price{}}, ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Book(tt.params, testNow)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrInvalidConsultation)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ConsultationStatusPending, c.Status())
			assert.Equal(t, []EventName{EventConsultationBooked}, eventNames(c))
			assert.Equal(t, tt.params.Slot != nil, c.TimeSlot() != nil)
		})
	}
}

func TestLifecycleRoundTrip(t *testing.T) {
	client, lawyer := uuid.New(), uuid.New()
	c := bookScheduled(t, client, lawyer)

	require.NoError(t, c.Confirm(lawyer, testNow.Add(time.Minute)))
	require.NoError(t, c.Start(lawyer, testNow.Add(24*time.Hour)))
	require.NoError(t, c.Complete(lawyer, testNow.Add(25*time.Hour)))
	require.NoError(t, c.Rate(client, 5, "great", testNow.Add(26*time.Hour)))

	assert.Equal(t, ConsultationStatusCompleted, c.Status())
	assert.Equal(t, []EventName{
		EventConsultationBooked,
		EventConsultationConfirmed,
		EventConsultationStarted,
		EventConsultationCompleted,
		EventConsultationRated,
	}, eventNames(c))

	require.NotNil(t, c.Rating())
	assert.Equal(t, 5, c.Rating().Score)
	assert.Equal(t, "great", c.Rating().Review)
	assert.NotNil(t, c.ConfirmedAt())
	assert.NotNil(t, c.StartedAt())
	assert.NotNil(t, c.CompletedAt())
	assert.Nil(t, c.CancelledAt())

	ids := map[uuid.UUID]bool{}
	for _, e := range c.PendingEvents() {
		assert.Equal(t, c.ID(), e.Meta().ConsultationID)
		assert.False(t, ids[e.Meta().ID], "event ids must be unique")
		ids[e.Meta().ID] = true
	}
}

type operation struct {
	name string
	to   ConsultationStatus
	run  func(c *Consultation, client, lawyer uuid.UUID) error
}

func operations() []operation {
	return []operation{
		{"confirm", ConsultationStatusConfirmed, func(c *Consultation, _, lawyer uuid.UUID) error {
			return c.Confirm(lawyer, testNow)
		}},
		{"start", ConsultationStatusInProgress, func(c *Consultation, _, lawyer uuid.UUID) error {
			return c.Start(lawyer, testNow)
		}},
		{"complete", ConsultationStatusCompleted, func(c *Consultation, _, lawyer uuid.UUID) error {
			return c.Complete(lawyer, testNow)
		}},
		{"cancel", ConsultationStatusCancelled, func(c *Consultation, client, _ uuid.UUID) error {
			return c.Cancel(client, "changed plans", testNow)
		}},
	}
}

// reach переводит новую консультацию в нужный статус по допустимому пути
func reach(t *testing.T, status ConsultationStatus) (*Consultation, uuid.UUID, uuid.UUID) {
	t.Helper()
	client, lawyer := uuid.New(), uuid.New()
	c := bookScheduled(t, client, lawyer)

	path := map[ConsultationStatus][]func() error{
		ConsultationStatusPending:   nil,
		ConsultationStatusConfirmed: {func() error { return c.Confirm(lawyer, testNow) }},
		ConsultationStatusInProgress: {
			func() error { return c.Confirm(lawyer, testNow) },
			func() error { return c.Start(lawyer, testNow) },
		},
		ConsultationStatusCompleted: {
			func() error { return c.Confirm(lawyer, testNow) },
			func() error { return c.Start(lawyer, testNow) },
			func() error { return c.Complete(lawyer, testNow) },
		},
		ConsultationStatusCancelled: {func() error { return c.Cancel(lawyer, "conflict of interest", testNow) }},
	}
	for _, step := range path[status] {
		require.NoError(t, step())
	}
	require.Equal(t, status, c.Status())
	return c, client, lawyer
}

func TestTransitionMatrix(t *testing.T) {
	statuses := []ConsultationStatus{
		ConsultationStatusPending,
		ConsultationStatusConfirmed,
		ConsultationStatusInProgress,
		ConsultationStatusCompleted,
		ConsultationStatusCancelled,
	}

	for _, from := range statuses {
		for _, op := range operations() {
			t.Run(string(from)+"/"+op.name, func(t *testing.T) {
				c, client, lawyer := reach(t, from)
				before := c.Snapshot()
				eventsBefore := len(c.PendingEvents())

				err := op.run(c, client, lawyer)
				if CanTransition(from, op.to) {
					require.NoError(t, err)
					assert.Equal(t, op.to, c.Status())
					assert.Len(t, c.PendingEvents(), eventsBefore+1)
					return
				}
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, before, c.Snapshot(), "failed transition must not mutate state")
				assert.Len(t, c.PendingEvents(), eventsBefore)
			})
		}
	}
}

func TestLawyerOnlyTransitions(t *testing.T) {
	c, client, _ := reach(t, ConsultationStatusPending)
	stranger := uuid.New()

	assert.ErrorIs(t, c.Confirm(client, testNow), ErrUnauthorized)
	assert.ErrorIs(t, c.Confirm(stranger, testNow), ErrUnauthorized)

	c, client, _ = reach(t, ConsultationStatusConfirmed)
	assert.ErrorIs(t, c.Start(client, testNow), ErrUnauthorized)

	c, client, _ = reach(t, ConsultationStatusInProgress)
	assert.ErrorIs(t, c.Complete(client, testNow), ErrUnauthorized)
	assert.Equal(t, ConsultationStatusInProgress, c.Status())
}

func TestUnauthorizedCheckedBeforeState(t *testing.T) {
	c, _, _ := reach(t, ConsultationStatusCompleted)

	err := c.Confirm(uuid.New(), testNow)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelByStranger(t *testing.T) {
	c, _, _ := reach(t, ConsultationStatusConfirmed)
	before := c.Snapshot()

	err := c.Cancel(uuid.New(), "just because", testNow)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, ConsultationStatusConfirmed, c.Status())
	assert.Equal(t, before, c.Snapshot())
}

func TestCancelRecordsAuditAndIsOneShot(t *testing.T) {
	c, client, lawyer := reach(t, ConsultationStatusInProgress)

	require.NoError(t, c.Cancel(client, "  emergency at work ", testNow))
	require.NotNil(t, c.CancelledBy())
	assert.Equal(t, client, *c.CancelledBy())
	assert.Equal(t, "emergency at work", c.CancellationReason())
	firstCancelledAt := c.CancelledAt()
	require.NotNil(t, firstCancelledAt)

	err := c.Cancel(lawyer, "again", testNow.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, *firstCancelledAt, *c.CancelledAt())
	assert.Equal(t, client, *c.CancelledBy())
}

func TestCancelRequiresReason(t *testing.T) {
	c, client, _ := reach(t, ConsultationStatusPending)

	require.ErrorIs(t, c.Cancel(client, "   ", testNow), ErrReasonRequired)
	assert.Equal(t, ConsultationStatusPending, c.Status())
}

func TestRate(t *testing.T) {
	t.Run("out of range on completed", func(t *testing.T) {
		c, client, _ := reach(t, ConsultationStatusCompleted)
		assert.ErrorIs(t, c.Rate(client, 6, "wow", testNow), ErrInvalidRating)
		assert.ErrorIs(t, c.Rate(client, 0, "", testNow), ErrInvalidRating)
		assert.False(t, c.IsRated())
	})

	t.Run("pending", func(t *testing.T) {
		c, client, _ := reach(t, ConsultationStatusPending)
		assert.ErrorIs(t, c.Rate(client, 4, "", testNow), ErrInvalidTransition)
	})

	t.Run("lawyer cannot rate", func(t *testing.T) {
		c, _, lawyer := reach(t, ConsultationStatusCompleted)
		assert.ErrorIs(t, c.Rate(lawyer, 5, "", testNow), ErrUnauthorized)
	})

	t.Run("only once", func(t *testing.T) {
		c, client, _ := reach(t, ConsultationStatusCompleted)
		require.NoError(t, c.Rate(client, 4, "good", testNow))
		assert.ErrorIs(t, c.Rate(client, 5, "better", testNow), ErrInvalidTransition)
		assert.Equal(t, 4, c.Rating().Score)
	})

	t.Run("review too long", func(t *testing.T) {
		c, client, _ := reach(t, ConsultationStatusCompleted)
		long := make([]rune, MaxReviewLength+1)
		for i := range long {
			long[i] = 'я'
		}
		assert.ErrorIs(t, c.Rate(client, 5, string(long), testNow), ErrInvalidRating)
	})
}

// TestRandomOperationSequences прогоняет случайные последовательности операций
// и проверяет, что оценка появляется только у завершённых и не меняется.
func TestRandomOperationSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		client, lawyer := uuid.New(), uuid.New()
		c := bookScheduled(t, client, lawyer)
		callers := []uuid.UUID{client, lawyer, uuid.New()}
		var firstRating *Rating

		for step := 0; step < 12; step++ {
			caller := callers[rng.Intn(len(callers))]
			prev := c.Status()

			var err error
			switch rng.Intn(5) {
			case 0:
				err = c.Confirm(caller, testNow)
			case 1:
				err = c.Start(caller, testNow)
			case 2:
				err = c.Complete(caller, testNow)
			case 3:
				err = c.Cancel(caller, "reason", testNow)
			case 4:
				err = c.Rate(caller, rng.Intn(7), "", testNow)
			}

			if err != nil {
				assert.Equal(t, prev, c.Status())
			} else if prev != c.Status() {
				assert.True(t, CanTransition(prev, c.Status()), "%s -> %s", prev, c.Status())
			}

			if c.IsRated() {
				require.Equal(t, ConsultationStatusCompleted, c.Status())
				if firstRating == nil {
					firstRating = c.Rating()
				}
				assert.Equal(t, *firstRating, *c.Rating())
			}
		}
	}
}

func TestConflictsWith(t *testing.T) {
	lawyer := uuid.New()
	a, _, _ := reach(t, ConsultationStatusPending)
	b := bookScheduled(t, uuid.New(), lawyer)
	other := bookScheduled(t, uuid.New(), lawyer)
	require.NoError(t, other.Confirm(lawyer, testNow))

	assert.False(t, b.ConflictsWith(nil))
	assert.False(t, other.ConflictsWith(other))
	assert.True(t, b.ConflictsWith(other))
	assert.False(t, a.ConflictsWith(other), "different lawyer")
}

func TestSnapshotRestore(t *testing.T) {
	c, client, _ := reach(t, ConsultationStatusCompleted)
	require.NoError(t, c.Rate(client, 3, "ok", testNow))
	c.MarkPersisted(4)

	restored, err := RestoreConsultation(c.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot(), restored.Snapshot())
	assert.Empty(t, restored.PendingEvents())
	assert.Equal(t, int64(4), restored.Version())
}

func TestRestoreRejectsBrokenRows(t *testing.T) {
	c, _, _ := reach(t, ConsultationStatusConfirmed)

	s := c.Snapshot()
	s.Status = "archived"
	_, err := RestoreConsultation(s)
	assert.Error(t, err)

	s = c.Snapshot()
	score := 5
	s.Rating = &score
	_, err = RestoreConsultation(s)
	assert.Error(t, err, "rating on non-completed consultation")

	s = c.Snapshot()
	s.SlotStart = nil
	_, err = RestoreConsultation(s)
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	c, client, _ := reach(t, ConsultationStatusConfirmed)
	require.NoError(t, c.Cancel(client, "found another lawyer", testNow))

	events := c.PendingEvents()
	last := events[len(events)-1]
	raw, err := json.Marshal(last)
	require.NoError(t, err)

	decoded, err := DecodeEvent(last.Name(), raw)
	require.NoError(t, err)
	cancelled, ok := decoded.(ConsultationCancelled)
	require.True(t, ok)
	assert.Equal(t, client, cancelled.CancelledBy)
	assert.Equal(t, "found another lawyer", cancelled.Reason)
	assert.Equal(t, last.Meta().ID, cancelled.Meta().ID)

	_, err = DecodeEvent("consultation.archived", raw)
	assert.Error(t, err)
}
