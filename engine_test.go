package warden

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwarden/warden/blacklist"
	"github.com/chatwarden/warden/warns"
)

func TestWarnEscalationFiresOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Warns.SetMode(ctx, 1, warns.ModeMute)
	require.NoError(t, err)

	res, err := eng.Warn(ctx, 1, 100, "spam")
	require.NoError(t, err)
	assert.Equal(1, res.Count)
	assert.Equal(3, res.Limit)
	assert.Equal(ActionNone, res.Action)

	res, err = eng.Warn(ctx, 1, 100, "spam")
	require.NoError(t, err)
	assert.Equal(2, res.Count)
	assert.Equal(ActionNone, res.Action)
	assert.Empty(client.Restricts)

	// third warning crosses the limit: exactly one mute
	res, err = eng.Warn(ctx, 1, 100, "spam")
	require.NoError(t, err)
	assert.Equal(3, res.Count)
	assert.Equal(ActionMute, res.Action)
	require.Len(t, client.Restricts, 1)
	assert.Equal(int64(100), client.Restricts[0].UserID)
	assert.Equal(PermissionSet{}, client.Restricts[0].Perms, "mute revokes all send permissions")

	// escalation does not clear the record; a fourth warning grows the
	// count but does not re-mute
	res, err = eng.Warn(ctx, 1, 100, "spam")
	require.NoError(t, err)
	assert.Equal(4, res.Count)
	assert.Equal(ActionNone, res.Action)
	assert.Len(client.Restricts, 1)
}

func TestConcurrentWarnsEscalateOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Warns.SetMode(ctx, 1, warns.ModeMute)
	require.NoError(t, err)

	// warns against one user serialize, so exactly one goroutine observes
	// the count crossing the limit and exactly one mute is issued
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Warn(ctx, 1, 100, "spam"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Len(client.Restricts, 1)
	rec, err := eng.Warnings(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(n, rec.Count())
}

func TestWarnEscalationAfterReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Warns.SetMode(ctx, 1, warns.ModeBan)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := eng.Warn(ctx, 1, 100, "spam")
		require.NoError(t, err)
	}
	assert.Len(client.Bans, 1)

	// reset returns the user to a clean slate; a fresh crossing escalates
	// again
	require.NoError(t, eng.ResetWarns(ctx, 1, 100))
	for i := 0; i < 3; i++ {
		_, err := eng.Warn(ctx, 1, 100, "spam")
		require.NoError(t, err)
	}
	assert.Len(client.Bans, 2)
}

func TestWarnKickIsTemporary(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	before := time.Now()
	for i := 0; i < 3; i++ {
		_, err := eng.Warn(ctx, 1, 100, "flood")
		require.NoError(t, err)
	}
	require.Len(t, client.Kicks, 1)
	until := client.Kicks[0].Until
	assert.True(until.After(before.Add(40*time.Second)), "kick carries a rejoin window")
	assert.True(until.Before(before.Add(time.Minute)))
}

func TestWarnActionFailureKeepsCount(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	client.ActionErr = ErrInsufficientRights

	var res *WarnResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = eng.Warn(ctx, 1, 100, "spam")
		require.NoError(t, err)
	}
	assert.Equal(ActionKick, res.Action)
	assert.ErrorIs(res.ActionErr, ErrInsufficientRights)

	// the failed action did not roll the count back
	rec, err := eng.Warnings(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(3, rec.Count())
}

func TestWarnExemptUserIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := EngineTestFixture()
	_, err := eng.Approvals.Approve(ctx, 1, 100)
	require.NoError(t, err)

	res, err := eng.Warn(ctx, 1, 100, "spam")
	require.NoError(t, err)
	assert.True(res.Exempt)
	assert.Equal(0, res.Count)

	rec, err := eng.Warnings(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(0, rec.Count(), "exempt users never accumulate warnings")
}

func TestRemoveLastWarn(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := EngineTestFixture()
	_, err := eng.Warn(ctx, 1, 100, "first")
	require.NoError(t, err)
	_, err = eng.Warn(ctx, 1, 100, "second")
	require.NoError(t, err)

	rec, err := eng.RemoveLastWarn(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal([]string{"first"}, rec.Reasons)

	_, err = eng.RemoveLastWarn(ctx, 1, 100)
	require.NoError(t, err)
	_, err = eng.RemoveLastWarn(ctx, 1, 100)
	assert.ErrorIs(err, ErrNoWarnings)
}

func TestProcessMessageBlacklistKick(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Blacklist.AddTrigger(ctx, 1, "foo|bar")
	require.NoError(t, err)
	require.NoError(t, eng.Blacklist.SetAction(ctx, 1, blacklist.ActionKick))

	out, err := eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "hello foo"})
	require.NoError(t, err)
	require.NotNil(t, out.Match)
	assert.Equal("foo", out.Match.Trigger)
	assert.Equal(ActionKick, out.Action)
	assert.Len(client.Kicks, 1)

	// word-boundary violation: no match, no action
	out, err = eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "foobar"})
	require.NoError(t, err)
	assert.Nil(out.Match)
	assert.Len(client.Kicks, 1)
}

func TestProcessMessageBlacklistWarnSharesEngine(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Blacklist.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	require.NoError(t, eng.Blacklist.SetAction(ctx, 1, blacklist.ActionWarn))
	_, err = eng.Warns.SetMode(ctx, 1, warns.ModeMute)
	require.NoError(t, err)

	// two manual warnings plus one automatic one cross the shared limit
	for i := 0; i < 2; i++ {
		_, err := eng.Warn(ctx, 1, 100, "manual")
		require.NoError(t, err)
	}
	out, err := eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "pure spam"})
	require.NoError(t, err)
	require.NotNil(t, out.Warn)
	assert.Equal(3, out.Warn.Count)
	assert.Equal(ActionMute, out.Warn.Action)
	assert.Len(client.Restricts, 1)

	rec, err := eng.Warnings(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal("Automated Blacklisted word spam", rec.Reasons[2])
}

func TestProcessMessageReportOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Blacklist.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	// default action is none: the match is reported, nothing is done

	out, err := eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "spam here"})
	require.NoError(t, err)
	require.NotNil(t, out.Match)
	assert.Equal(ActionNone, out.Action)
	assert.Nil(out.Warn)
	assert.Empty(client.Kicks)
	assert.Empty(client.Bans)
	assert.Empty(client.Restricts)
}

func TestProcessMessageSkipsBotsAndExempt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	_, err := eng.Blacklist.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	require.NoError(t, eng.Blacklist.SetAction(ctx, 1, blacklist.ActionBan))

	out, err := eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "spam", IsFromBot: true})
	require.NoError(t, err)
	assert.Nil(out.Match)
	assert.Empty(client.Bans)

	eng.Staff[500] = true
	out, err = eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 500, Text: "spam"})
	require.NoError(t, err)
	assert.True(out.Exempt)
	assert.Empty(client.Bans)
}

func TestProcessMessagePanicYieldsEmptyOutcome(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := EngineTestFixture()
	_, err := eng.Blacklist.AddTrigger(ctx, 1, "spam")
	require.NoError(t, err)
	require.NoError(t, eng.Blacklist.SetAction(ctx, 1, blacklist.ActionWarn))

	// a nil warn store makes the warn path panic; recovery must still hand
	// back a usable outcome, never nil with a nil error
	eng.Warns = nil
	out, err := eng.ProcessMessage(ctx, &MessageEvent{ChatID: 1, UserID: 100, Text: "spam"})
	assert.NoError(err)
	require.NotNil(t, out)
	assert.Nil(out.Warn)
}

func TestReloadAdminsThrottle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, client := EngineTestFixture()
	client.Rosters[1] = nil

	_, err := eng.ReloadAdmins(ctx, 1, true)
	require.NoError(t, err)
	_, err = eng.ReloadAdmins(ctx, 1, true)
	assert.ErrorIs(err, ErrThrottled)
	_, err = eng.ReloadAdmins(ctx, 1, false)
	assert.NoError(err, "automatic reload is never throttled")
}

func TestEscalationActionPolicy(t *testing.T) {
	assert := assert.New(t)

	// crossing the limit
	assert.Equal(ActionKick, EscalationAction(2, 3, 3, warns.ModeKick))
	assert.Equal(ActionBan, EscalationAction(2, 3, 3, warns.ModeBan))
	assert.Equal(ActionMute, EscalationAction(2, 3, 3, warns.ModeMute))
	// below the limit
	assert.Equal(ActionNone, EscalationAction(1, 2, 3, warns.ModeBan))
	// already escalated
	assert.Equal(ActionNone, EscalationAction(3, 4, 3, warns.ModeBan))
	// limit lowered below an existing count: no retroactive trigger
	assert.Equal(ActionNone, EscalationAction(5, 6, 3, warns.ModeBan))
	// limit of one escalates on the first warning
	assert.Equal(ActionBan, EscalationAction(0, 1, 1, warns.ModeBan))
}
