package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKeyNormalizesToUTC(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)

	a := SlotKey("daily", time.Date(2026, 7, 6, 8, 0, 0, 0, berlin))
	b := SlotKey("daily", time.Date(2026, 7, 6, 6, 0, 0, 0, time.UTC))

	assert.Equal(t, a, b, "replicas in different zones must agree on the key")
	assert.Equal(t, "mi42:scheduler:daily:2026-07-06T06:00:00Z", a)
}

func TestSlotKeySeparatesSlots(t *testing.T) {
	at := time.Date(2026, 7, 6, 6, 0, 0, 0, time.UTC)
	assert.NotEqual(t, SlotKey("daily", at), SlotKey("weekly", at))
	assert.NotEqual(t, SlotKey("daily", at), SlotKey("daily", at.AddDate(0, 0, 1)))
}

func TestNilLockerNeverGrants(t *testing.T) {
	assert.Nil(t, NewLocker(nil))

	var l *Locker
	_, ok, err := l.TryLock(context.Background(), SlotKey("daily", time.Now()), time.Minute)
	require.Error(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(context.Background(), "k", "token"))
}
