package blacklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwarden/warden/store"
)

func TestParseAction(t *testing.T) {
	assert := assert.New(t)

	for _, s := range []string{"none", "warn", "kick", "BAN", "Mute"} {
		_, err := ParseAction(s)
		assert.NoError(err)
	}
	_, err := ParseAction("explode")
	assert.Error(err)
}

func TestTriggerAddRemove(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewStore(store.NewMemStore(), nil)

	// no rule record exists until the first write
	_, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(ok)

	added, err := s.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	assert.True(added)

	// duplicate add is reported, case-insensitively
	added, err = s.AddTrigger(ctx, 1, "SPAM")
	require.NoError(t, err)
	assert.False(added)

	rule, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal([]string{"spam"}, rule.Triggers)
	assert.Equal(ActionNone, rule.Action)
	assert.Equal(DefaultReason, rule.Reason)

	removed, err := s.RemoveTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	assert.True(removed)

	removed, err = s.RemoveTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	assert.False(removed)
}

func TestRemoveAllKeepsSettings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewStore(store.NewMemStore(), nil)
	_, err := s.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	_, err = s.AddTrigger(ctx, 1, "eggs")
	require.NoError(t, err)
	require.NoError(t, s.SetAction(ctx, 1, ActionMute))

	require.NoError(t, s.RemoveAll(ctx, 1))

	rule, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(rule.Triggers)
	assert.Equal(ActionMute, rule.Action)
}

func TestSetReason(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewStore(store.NewMemStore(), nil)
	require.NoError(t, s.SetReason(ctx, 1, "no %s allowed here"))
	_, err := s.AddTrigger(ctx, 1, "politics")
	require.NoError(t, err)

	m, err := s.Match(ctx, 1, "talking politics again")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal("no politics allowed here", m.Reason)

	// empty reason resets to the default template
	require.NoError(t, s.SetReason(ctx, 1, ""))
	m, err = s.Match(ctx, 1, "talking politics again")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal("Automated Blacklisted word politics", m.Reason)
}
