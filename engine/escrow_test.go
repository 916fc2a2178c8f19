package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/vicodeox/stackAuc/core"
)

func TestRefundEscrow_OutbidBidder(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	env.fund("carol", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	assert.NoError(t, err)
	_, err = env.PlaceBid(ctx, "carol", id, 200)
	assert.NoError(t, err)

	assert.NoError(t, env.RefundEscrow(ctx, "bob", id, "bob"))
	check.Equal(t, uint64(1000), env.bank.Balance("bob", "USD"))

	bal, err := env.GetEscrowBalance(id, "bob")
	assert.NoError(t, err)
	check.Equal(t, uint64(0), bal.Amount)
	check.True(t, bal.Refunded)

	// The same custody cannot be paid out twice.
	err = env.RefundEscrow(ctx, "bob", id, "bob")
	check.True(t, errors.Is(err, core.ErrAlreadyRefunded))
}

func TestRefundEscrow_LeaderIsLockedIn(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	assert.NoError(t, err)

	err = env.RefundEscrow(ctx, "bob", id, "bob")
	check.True(t, errors.Is(err, core.ErrStillLeading))

	// An ended-but-unfinalized auction still holds the leader's funds;
	// they flow through settlement, not refund.
	env.clock.Set(2000)
	err = env.RefundEscrow(ctx, "bob", id, "bob")
	check.True(t, errors.Is(err, core.ErrStillLeading))
}

func TestRefundEscrow_ModeratorOnBehalf(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	env.fund("carol", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	assert.NoError(t, err)
	_, err = env.PlaceBid(ctx, "carol", id, 200)
	assert.NoError(t, err)

	// A stranger cannot trigger someone else's refund.
	err = env.RefundEscrow(ctx, "mallory", id, "bob")
	check.True(t, errors.Is(err, core.ErrUnauthorized))

	assert.NoError(t, env.AddModerator("owner", "mod"))
	assert.NoError(t, env.RefundEscrow(ctx, "mod", id, "bob"))
	check.Equal(t, uint64(1000), env.bank.Balance("bob", "USD"))
}

func TestRefundEscrow_RebidAfterRefundOpensFreshBalance(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	env.fund("carol", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	assert.NoError(t, err)
	_, err = env.PlaceBid(ctx, "carol", id, 200)
	assert.NoError(t, err)
	assert.NoError(t, env.RefundEscrow(ctx, "bob", id, "bob"))

	// bob returns with a higher bid: the refunded balance reopens and
	// custody holds the full new amount.
	_, err = env.PlaceBid(ctx, "bob", id, 300)
	assert.NoError(t, err)

	bal, err := env.GetEscrowBalance(id, "bob")
	assert.NoError(t, err)
	check.Equal(t, uint64(300), bal.Amount)
	check.False(t, bal.Refunded)
	check.Equal(t, uint64(700), env.bank.Balance("bob", "USD"))
}

func TestCancelAuction_RefundsLeaderInFull(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 400)
	assert.NoError(t, err)

	assert.NoError(t, env.CancelAuction(ctx, "alice", id))
	check.Equal(t, uint64(1000), env.bank.Balance("bob", "USD"))
	check.Equal(t, uint64(0), env.bank.Balance("escrow", "USD"))

	status, err := env.GetAuctionStatus(id)
	assert.NoError(t, err)
	check.Equal(t, core.StatusCancelled, status)

	env.fund("carol", 1000)
	_, err = env.PlaceBid(ctx, "carol", id, 500)
	check.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestCancelAuction_CreatorOnlyAndNotAfterEnd(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	err = env.CancelAuction(ctx, "bob", id)
	check.True(t, errors.Is(err, core.ErrUnauthorized))

	env.clock.Set(2000)
	err = env.CancelAuction(ctx, "alice", id)
	check.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestCancelAuction_FromPaused(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	assert.NoError(t, env.PauseAuction(ctx, "alice", id))
	assert.NoError(t, env.CancelAuction(ctx, "alice", id))

	status, err := env.GetAuctionStatus(id)
	assert.NoError(t, err)
	check.Equal(t, core.StatusCancelled, status)
}
