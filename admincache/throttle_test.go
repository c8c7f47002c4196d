package admincache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleBasics(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(10 * time.Minute)
	th.now = func() time.Time { return now }

	// nothing armed yet
	assert.False(th.IsBlocked(1, ReasonManual))
	assert.False(th.IsBlocked(1, ReasonAuto))

	th.Arm(1, ReasonManual)
	assert.True(th.IsBlocked(1, ReasonManual))
	assert.False(th.IsBlocked(1, ReasonAuto), "auto refresh never blocks")
	assert.False(th.IsBlocked(2, ReasonManual), "cooldown is per chat")

	now = now.Add(10*time.Minute + time.Second)
	assert.False(th.IsBlocked(1, ReasonManual))
}

func TestThrottleRearmOverwritesDeadline(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(10 * time.Minute)
	th.now = func() time.Time { return now }

	th.Arm(1, ReasonManual)
	now = now.Add(8 * time.Minute)
	th.Arm(1, ReasonManual)

	// deadline is measured from the second arm, not the first
	now = now.Add(4 * time.Minute)
	assert.True(th.IsBlocked(1, ReasonManual))
	now = now.Add(7 * time.Minute)
	assert.False(th.IsBlocked(1, ReasonManual))
}

func TestThrottleAutoArmOnlyBookkeeps(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(10 * time.Minute)
	th.now = func() time.Time { return now }

	th.Arm(1, ReasonManual)
	assert.True(th.IsBlocked(1, ReasonManual))

	// an auto refresh overwrites the manual cooldown
	th.Arm(1, ReasonAuto)
	assert.False(th.IsBlocked(1, ReasonManual))
}
