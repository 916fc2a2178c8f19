package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BasisPointDenominator is the fee-rate scale: 10000 bps = 100%.
const BasisPointDenominator = 10_000

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// PlatformFee computes ⌊amount × feeRateBps / 10000⌋.
//
// The product is exact in decimal arithmetic and the division by 10^4 is
// a pure exponent shift, so the floor is exact for any uint64 inputs.
// No float64 money touches the settlement path.
func PlatformFee(amount, feeRateBps uint64) uint64 {
	fee := decimalFromUint(amount).
		Mul(decimalFromUint(feeRateBps)).
		Shift(-4).
		Floor()
	return fee.BigInt().Uint64()
}

// SplitAmount computes ⌊net × percent / 100⌋ using the same exact decimal
// shift as PlatformFee.
func SplitAmount(net, percent uint64) uint64 {
	amt := decimalFromUint(net).
		Mul(decimalFromUint(percent)).
		Shift(-2).
		Floor()
	return amt.BigInt().Uint64()
}

// ValidateSplit checks a payment split configuration: every recipient
// named with a non-zero percentage, and a total (charity included) of at
// most 100%.
func ValidateSplit(split *PaymentSplit) error {
	if split == nil {
		return nil
	}
	for _, r := range split.Recipients {
		if r.Recipient == "" {
			return fmt.Errorf("%w: split recipient must be named", ErrInvalidParameters)
		}
		if r.Percent == 0 {
			return fmt.Errorf("%w: split percentage for %s must be positive", ErrInvalidParameters, r.Recipient)
		}
	}
	if split.CharityPercent > 0 && split.Charity == "" {
		return fmt.Errorf("%w: charity percentage set without a charity recipient", ErrInvalidParameters)
	}
	if total := split.TotalPercent(); total > 100 {
		return fmt.Errorf("%w: split percentages total %d%%, exceeding 100%%", ErrInvalidParameters, total)
	}
	return nil
}

// ComputeSettlementPlan produces the full list of transfer instructions
// for finalizing an auction with a winner, in the fixed execution order:
// platform fee, then split recipients, then charity, then the seller
// remainder. The plan is computed and validated in full before any funds
// move, so a finalize call can fail fast without touching the ledger.
//
// Invariant: the instruction amounts sum exactly to the clearing price.
func ComputeSettlementPlan(a *Auction, split *PaymentSplit, feeRateBps uint64, feeRecipient string) (*SettlementPlan, error) {
	if a.HighestBidder == "" {
		return nil, fmt.Errorf("%w: auction %d has no winner to settle", ErrInvalidState, a.ID)
	}
	if feeRateBps > BasisPointDenominator {
		return nil, fmt.Errorf("%w: fee rate %d exceeds %d bps", ErrInvalidParameters, feeRateBps, BasisPointDenominator)
	}
	if feeRateBps > 0 && feeRecipient == "" {
		return nil, fmt.Errorf("%w: fee rate set without a fee recipient", ErrInvalidParameters)
	}
	if err := ValidateSplit(split); err != nil {
		return nil, err
	}

	price := a.HighestBid
	fee := PlatformFee(price, feeRateBps)
	net := price - fee

	plan := &SettlementPlan{
		AuctionID:     a.ID,
		Winner:        a.HighestBidder,
		ClearingPrice: price,
		PlatformFee:   fee,
	}
	if fee > 0 {
		plan.Instructions = append(plan.Instructions, TransferInstruction{
			Recipient: feeRecipient,
			Amount:    fee,
			Purpose:   TransferPlatformFee,
		})
	}

	distributed := uint64(0)
	if split != nil {
		for _, r := range split.Recipients {
			amt := SplitAmount(net, r.Percent)
			if amt == 0 {
				continue
			}
			plan.Instructions = append(plan.Instructions, TransferInstruction{
				Recipient: r.Recipient,
				Amount:    amt,
				Purpose:   TransferSplit,
			})
			distributed += amt
		}
		if split.CharityPercent > 0 {
			amt := SplitAmount(net, split.CharityPercent)
			if amt > 0 {
				plan.Instructions = append(plan.Instructions, TransferInstruction{
					Recipient: split.Charity,
					Amount:    amt,
					Purpose:   TransferCharity,
				})
				distributed += amt
			}
		}
	}

	// distributed ≤ net because the percentages total at most 100 and
	// every share is floored.
	remainder := net - distributed
	if remainder > 0 {
		plan.Instructions = append(plan.Instructions, TransferInstruction{
			Recipient: a.Seller,
			Amount:    remainder,
			Purpose:   TransferSellerProceeds,
		})
	}

	total := uint64(0)
	for _, inst := range plan.Instructions {
		total += inst.Amount
	}
	if total != price {
		return nil, fmt.Errorf("%w: settlement plan for auction %d distributes %d of %d", ErrInvalidParameters, a.ID, total, price)
	}
	return plan, nil
}
