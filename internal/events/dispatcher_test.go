package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/letter-service/internal/domain"
)

func TestDispatcher_DeliversToTypedAndWildcardHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var typed, every []EventType
	d.Subscribe(EventLetterReplied, func(_ context.Context, e Event) error {
		typed = append(typed, e.Type)
		return nil
	})
	d.Subscribe(AnyEvent, func(_ context.Context, e Event) error {
		every = append(every, e.Type)
		return nil
	})

	sector := domain.SectorHealth
	actor := domain.Actor{UserID: "u1", Username: "nurse", Sector: &sector}
	require.NoError(t, d.Publish(context.Background(), New(EventLetterReplied, "2024/A/000001", actor, nil)))
	require.NoError(t, d.Publish(context.Background(), New(EventUserCreated, "u2", actor, nil)))

	assert.Equal(t, []EventType{EventLetterReplied}, typed)
	assert.Equal(t, []EventType{EventLetterReplied, EventUserCreated}, every)
}

func TestDispatcher_JoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	d.Subscribe(EventLetterDeleted, func(context.Context, Event) error {
		calls++
		return errors.New("first")
	})
	d.Subscribe(EventLetterDeleted, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), New(EventLetterDeleted, "x", domain.Actor{}, nil))
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestActorOf(t *testing.T) {
	sector := domain.SectorIncome
	a := ActorOf(domain.Actor{UserID: "u", Superuser: true, Sector: &sector})
	assert.Equal(t, domain.ActorSuperuser, a.Kind)
	assert.Empty(t, a.Sector)

	a = ActorOf(domain.Actor{UserID: "u", Sector: &sector})
	assert.Equal(t, domain.ActorSector, a.Kind)
	assert.Equal(t, domain.SectorIncome, a.Sector)
}
