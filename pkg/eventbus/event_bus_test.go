package eventbus_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/eventbus"
)

type createdEvent struct {
	ID int
}

type updatedEvent struct {
	ID int
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestEventBus_PublishMatchesSignature(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(newTestLogger())

	var created []createdEvent
	bus.Subscribe(func(e createdEvent) {
		created = append(created, e)
	})
	bus.Subscribe(func(e updatedEvent) {
		t.Error("updated handler must not fire for created events")
	})

	bus.Publish(createdEvent{ID: 1})
	bus.Publish(createdEvent{ID: 2})

	require.Len(t, created, 2)
	assert.Equal(t, 1, created[0].ID)
	assert.Equal(t, 2, created[1].ID)
}

func TestEventBus_PointerEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(newTestLogger())

	var got *createdEvent
	bus.Subscribe(func(e *createdEvent) {
		got = e
	})

	bus.Publish(&createdEvent{ID: 7})

	require.NotNil(t, got)
	assert.Equal(t, 7, got.ID)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(newTestLogger())

	calls := 0
	handler := func(e createdEvent) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	assert.Equal(t, 0, bus.SubscribersCount())

	bus.Publish(createdEvent{ID: 1})
	assert.Equal(t, 0, calls)
}

func TestEventBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(newTestLogger())

	bus.Subscribe(func(e createdEvent) {
		panic("boom")
	})

	delivered := false
	bus.Subscribe(func(e createdEvent) {
		delivered = true
	})

	bus.Publish(createdEvent{ID: 1})
	assert.True(t, delivered)
}
