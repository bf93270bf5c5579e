package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
)

func TestBus_TypedAndCatchAll(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	var typed, all []string
	bus.Subscribe(messages.TypeCacheGames, func(_ context.Context, m messages.Message) {
		typed = append(typed, m.Type())
	})
	bus.SubscribeAll(func(_ context.Context, m messages.Message) {
		all = append(all, m.Type())
	})

	bus.Publish(ctx, &messages.CacheGames{})
	bus.Publish(ctx, &messages.ControllerChange{Version: "v2"})

	assert.Equal(t, []string{messages.TypeCacheGames}, typed)
	assert.Equal(t, []string{messages.TypeCacheGames, messages.TypeControllerChange}, all)
}

func TestBus_NoSubscribersIsFine(t *testing.T) {
	NewBus().Publish(context.Background(), &messages.ClearCache{})
}
