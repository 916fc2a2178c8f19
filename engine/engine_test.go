package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/vicodeox/stackAuc/core"
	"github.com/vicodeox/stackAuc/store"
)

// testEnv bundles an engine with its injected collaborators so tests can
// advance time, mint funds and inspect balances directly.
type testEnv struct {
	*Engine
	clock  *ManualClock
	bank   *MemoryBank
	owners *MemoryOwnerRegistry
	mem    *store.Memory
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return newTestEngineWith(t, cfg, nil)
}

// newTestEngineWith lets a test swap collaborators (for example a
// failing transfer service) before the engine is assembled.
func newTestEngineWith(t *testing.T, cfg Config, mutate func(*Deps)) *testEnv {
	t.Helper()
	if cfg.Owner == "" {
		cfg.Owner = "owner"
	}
	if cfg.FeeRecipient == "" {
		cfg.FeeRecipient = "platform"
	}
	env := &testEnv{
		clock:  NewManualClock(100),
		bank:   NewMemoryBank(),
		owners: NewMemoryOwnerRegistry(),
		mem:    store.NewMemory(),
	}
	deps := Deps{
		Store:     env.mem,
		Clock:     env.clock,
		Transfers: env.bank,
		Owners:    env.owners,
	}
	if mutate != nil {
		mutate(&deps)
	}
	eng, err := New(cfg, deps)
	assert.NoError(t, err)
	env.Engine = eng
	return env
}

func (env *testEnv) fund(principal string, amount uint64) {
	env.bank.Credit(principal, "USD", amount)
}

// englishParams is a plain ascending auction starting immediately and
// running for 1000 ticks.
func englishParams() CreateAuctionParams {
	return CreateAuctionParams{
		ItemID:     "item-1",
		Kind:       core.AuctionEnglish,
		Token:      "USD",
		StartPrice: 100,
		Duration:   1000,
	}
}

func TestNew_Validation(t *testing.T) {
	mem := store.NewMemory()
	deps := Deps{
		Store:     mem,
		Clock:     NewManualClock(0),
		Transfers: NewMemoryBank(),
		Owners:    NewMemoryOwnerRegistry(),
	}

	_, err := New(Config{}, deps)
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	_, err = New(Config{Owner: "owner", FeeRateBps: 10_001}, deps)
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	_, err = New(Config{Owner: "owner"}, Deps{Store: mem})
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	eng, err := New(Config{Owner: "owner"}, deps)
	assert.NoError(t, err)
	check.NotNil(t, eng)
}

func TestCreateAuction_SequentialIDsAndLazyStart(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id1, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	check.Equal(t, uint64(1), id1)

	params := englishParams()
	params.StartTick = 500
	id2, err := env.CreateAuction(ctx, "alice", params)
	assert.NoError(t, err)
	check.Equal(t, uint64(2), id2)

	// The first auction started immediately; the second is pending
	// until its start tick passes, with no explicit activation call.
	s1, err := env.GetAuctionStatus(id1)
	assert.NoError(t, err)
	check.Equal(t, core.StatusActive, s1)

	s2, err := env.GetAuctionStatus(id2)
	assert.NoError(t, err)
	check.Equal(t, core.StatusPending, s2)

	env.clock.Set(500)
	s2, err = env.GetAuctionStatus(id2)
	assert.NoError(t, err)
	check.Equal(t, core.StatusActive, s2)

	a2, err := env.GetAuction(id2)
	assert.NoError(t, err)
	check.Equal(t, uint64(1500), a2.EndTick)
}

func TestCreateAuction_InvalidParams(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	for name, mutate := range map[string]func(*CreateAuctionParams){
		"missing item":           func(p *CreateAuctionParams) { p.ItemID = "" },
		"missing token":          func(p *CreateAuctionParams) { p.Token = "" },
		"zero start price":       func(p *CreateAuctionParams) { p.StartPrice = 0 },
		"zero duration":          func(p *CreateAuctionParams) { p.Duration = 0 },
		"start tick in the past": func(p *CreateAuctionParams) { p.StartTick = 50 },
		"unknown kind":           func(p *CreateAuctionParams) { p.Kind = "sealed" },
		"end price on english":   func(p *CreateAuctionParams) { p.EndPrice = 10 },
		"snipe window without extension": func(p *CreateAuctionParams) {
			p.AntiSnipeWindow = 100
		},
		"start plus duration wraps": func(p *CreateAuctionParams) {
			p.StartTick = math.MaxUint64 - 10
			p.Duration = 20
		},
		"immediate start with wrapping duration": func(p *CreateAuctionParams) {
			p.Duration = math.MaxUint64
		},
	} {
		t.Run(name, func(t *testing.T) {
			params := englishParams()
			mutate(&params)
			_, err := env.CreateAuction(ctx, "alice", params)
			check.True(t, errors.Is(err, core.ErrInvalidParameters))
		})
	}

	dutch := englishParams()
	dutch.Kind = core.AuctionDutch
	dutch.StartPrice = 100
	dutch.EndPrice = 100
	_, err := env.CreateAuction(ctx, "alice", dutch)
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
}

func TestEmergencyStop_BlocksGuardedOperations(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	assert.NoError(t, env.SetEmergencyStop("owner", true))

	_, err = env.CreateAuction(ctx, "alice", englishParams())
	check.True(t, errors.Is(err, core.ErrEmergencyStop))
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	check.True(t, errors.Is(err, core.ErrEmergencyStop))
	err = env.CancelAuction(ctx, "alice", id)
	check.True(t, errors.Is(err, core.ErrEmergencyStop))

	// Reads stay available during a stop.
	_, err = env.GetAuction(id)
	check.NoError(t, err)

	assert.NoError(t, env.SetEmergencyStop("owner", false))
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	check.True(t, errors.Is(err, core.ErrTransferFailed)) // unfunded, but past the guard
}

func TestWhitelist_Enforcement(t *testing.T) {
	env := newTestEngine(t, Config{WhitelistRequired: true})
	ctx := context.Background()

	// The owner bypasses the whitelist.
	id, err := env.CreateAuction(ctx, "owner", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	check.True(t, errors.Is(err, core.ErrNotWhitelisted))

	assert.NoError(t, env.AddToWhitelist("owner", "bob"))
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	check.NoError(t, err)

	assert.NoError(t, env.RemoveFromWhitelist("owner", "bob"))
	_, err = env.PlaceBid(ctx, "bob", id, 200)
	check.True(t, errors.Is(err, core.ErrNotWhitelisted))
}

type staticEligibility map[string]bool

func (s staticEligibility) IsEligible(p string) bool { return s[p] }

func TestWhitelist_ExternalEligibilityChecker(t *testing.T) {
	env := newTestEngineWith(t, Config{WhitelistRequired: true}, func(d *Deps) {
		d.Eligibility = staticEligibility{"carol": true}
	})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "owner", englishParams())
	assert.NoError(t, err)

	env.fund("carol", 1000)
	_, err = env.PlaceBid(ctx, "carol", id, 100)
	check.NoError(t, err)

	_, err = env.PlaceBid(ctx, "mallory", id, 200)
	check.True(t, errors.Is(err, core.ErrNotWhitelisted))
}

func TestSecurityEvents_AppendOnlyTrail(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	_, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	ev, err := env.GetSecurityEvent(1)
	assert.NoError(t, err)
	check.Equal(t, "auction-created", ev.Type)
	check.Equal(t, "alice", ev.Actor)
	check.Equal(t, uint64(100), ev.Tick)

	_, err = env.GetSecurityEvent(99)
	check.True(t, errors.Is(err, core.ErrNotFound))
}
