package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/alerts"
	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/events"
	"github.com/forots/vigia/internal/models"
)

type fakeNotifier struct {
	calls []alerts.Alert
	keys  []string
}

func (f *fakeNotifier) MaybeAlert(key string, a alerts.Alert, cooldown time.Duration) bool {
	f.calls = append(f.calls, a)
	f.keys = append(f.keys, key)
	return true
}

func guardTestConfig() (config.GuardConfig, config.CaptchaConfig) {
	return config.GuardConfig{
			Window:        10 * time.Minute,
			MaxFails:      3,
			BlockFor:      time.Hour,
			AlertCooldown: 10 * time.Minute,
		}, config.CaptchaConfig{
			Threshold:   0.5,
			StrikeLimit: 3,
			StrikeBlock: 30 * time.Minute,
		}
}

func setupGuard(t *testing.T) (*Guard, *fakeNotifier, *gorm.DB, *events.Log) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.BlockedIP{}, &models.SecurityEvent{}))

	gcfg, ccfg := guardTestConfig()
	notifier := &fakeNotifier{}
	log := events.NewLog(db)
	g := New(gcfg, ccfg, NewBlockStore(db), log, notifier)
	return g, notifier, db, log
}

func TestGuard_WorstCountAcrossDimensions(t *testing.T) {
	g, _, _, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	// Same email from two IPs: the email counter leads.
	g.OnFailure(ctx, Attempt{Action: "login", IP: "1.1.1.1", Email: "a@b.com"})
	worst := g.OnFailure(ctx, Attempt{Action: "login", IP: "2.2.2.2", Email: "a@b.com"})
	assert.Equal(t, 2, worst)
}

func TestGuard_EscalatesAtMaxFailsWithSingleBlock(t *testing.T) {
	g, notifier, db, log := setupGuard(t)
	ctx := context.Background()

	a := Attempt{Action: "login", IP: "1.2.3.4", Email: "a@b.com", Route: "/api/v1/auth/login"}
	g.OnFailure(ctx, a)
	g.OnFailure(ctx, a)
	assert.False(t, g.Store().IsBlocked(ctx, "1.2.3.4"), "below threshold, not blocked")

	worst := g.OnFailure(ctx, a)
	assert.Equal(t, 3, worst)
	assert.True(t, g.Store().IsBlocked(ctx, "1.2.3.4"))

	var rows []models.BlockedIP
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "exactly one block store write")
	assert.Equal(t, "bruteforce:login:3", rows[0].Reason)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "bf:login:1.2.3.4:a@b.com", notifier.keys[0])
	assert.Equal(t, 3, notifier.calls[0].Worst)

	// The escalation appends a second audit event for the block itself.
	log.Close()
	var blocked []models.SecurityEvent
	require.NoError(t, db.Where("reason = ?", "blocked_bruteforce:3").Find(&blocked).Error)
	assert.Len(t, blocked, 1)
}

func TestGuard_EscalatesWhenEmailDimensionTips(t *testing.T) {
	g, notifier, _, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	// Attacker rotates IPs against one account; the email counter crosses
	// the line and the policy still blocks the IP that tipped it.
	g.OnFailure(ctx, Attempt{Action: "login", IP: "1.1.1.1", Email: "victim@b.com"})
	g.OnFailure(ctx, Attempt{Action: "login", IP: "2.2.2.2", Email: "victim@b.com"})
	g.OnFailure(ctx, Attempt{Action: "login", IP: "3.3.3.3", Email: "victim@b.com"})

	assert.True(t, g.Store().IsBlocked(ctx, "3.3.3.3"))
	assert.Len(t, notifier.calls, 1)
}

func TestGuard_SuccessPardonsAllDimensions(t *testing.T) {
	g, notifier, _, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	a := Attempt{Action: "login", IP: "1.2.3.4", Email: "a@b.com"}
	g.OnFailure(ctx, a)
	g.OnFailure(ctx, a)
	g.OnSuccess(ctx, a)

	// A later failure starts at 1, not 3, so no escalation fires.
	worst := g.OnFailure(ctx, a)
	assert.Equal(t, 1, worst)
	assert.False(t, g.Store().IsBlocked(ctx, "1.2.3.4"))
	assert.Empty(t, notifier.calls)
}

func TestGuard_SuccessWritesAuditEvent(t *testing.T) {
	g, _, db, log := setupGuard(t)
	ctx := context.Background()

	g.OnSuccess(ctx, Attempt{Action: "login", IP: "1.2.3.4", Email: "alice@b.com", Route: "/api/v1/auth/login"})
	log.Close()

	var row models.SecurityEvent
	require.NoError(t, db.Where("ok = ?", true).First(&row).Error)
	assert.Equal(t, "login", row.Action)
	assert.Equal(t, "ok", row.Reason)
	assert.Equal(t, "a***@b.com", row.Email, "email stored masked")
}

func TestGuard_LowScoreStrikesBlockAtLimit(t *testing.T) {
	g, _, db, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	assert.False(t, g.LowScoreStrike(ctx, "9.9.9.9", "login", "/api/v1/auth/login", 0.2))
	assert.False(t, g.LowScoreStrike(ctx, "9.9.9.9", "login", "/api/v1/auth/login", 0.1))
	assert.False(t, g.Store().IsBlocked(ctx, "9.9.9.9"))

	assert.True(t, g.LowScoreStrike(ctx, "9.9.9.9", "login", "/api/v1/auth/login", 0.3))
	assert.True(t, g.Store().IsBlocked(ctx, "9.9.9.9"))

	var row models.BlockedIP
	require.NoError(t, db.Where("ip = ?", "9.9.9.9").First(&row).Error)
	assert.Equal(t, "low_score:login:0.3", row.Reason)
}

func TestGuard_StrikesAreIndependentOfAttemptLedger(t *testing.T) {
	g, _, _, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	// Two failures plus two strikes: neither path alone crosses its own
	// threshold, and they do not pool into one.
	a := Attempt{Action: "login", IP: "1.2.3.4", Email: "a@b.com"}
	g.OnFailure(ctx, a)
	g.OnFailure(ctx, a)
	g.LowScoreStrike(ctx, "1.2.3.4", "login", "/api/v1/auth/login", 0.2)
	g.LowScoreStrike(ctx, "1.2.3.4", "login", "/api/v1/auth/login", 0.2)

	assert.False(t, g.Store().IsBlocked(ctx, "1.2.3.4"))
}

func TestGuard_Status(t *testing.T) {
	g, _, _, log := setupGuard(t)
	defer log.Close()
	ctx := context.Background()

	g.OnFailure(ctx, Attempt{Action: "login", IP: "1.2.3.4", Email: "a@b.com"})
	g.LowScoreStrike(ctx, "5.6.7.8", "login", "/x", 0.1)

	status := g.Status()
	assert.Equal(t, 3, status.AttemptCounters) // ip, email, ip_email
	assert.Equal(t, 1, status.StrikedIPs)
	assert.Equal(t, 0, status.BlockedIPsMemory)
}
