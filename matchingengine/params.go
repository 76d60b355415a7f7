package matchingengine

import (
	"fmt"
	"math/bits"
)

func (p *AuctionParameters) Validate() error {
	if p.UserPenaltyRewardBps > FeePrecisionMax {
		return ErrUserPenaltyRewardBpsTooLarge
	}
	if p.InitialPenaltyBps > FeePrecisionMax {
		return ErrInitialPenaltyBpsTooLarge
	}
	if p.Duration == 0 {
		return ErrZeroDuration
	}
	if p.GracePeriod == 0 {
		return ErrZeroGracePeriod
	}
	if p.GracePeriod < p.Duration {
		return ErrGracePeriodTooShort
	}
	if p.PenaltyPeriod == 0 {
		return ErrZeroPenaltyPeriod
	}
	if p.MinOfferDeltaBps > FeePrecisionMax {
		return ErrMinOfferDeltaBpsTooLarge
	}
	if p.SecurityDepositBase == 0 {
		return ErrZeroSecurityDepositBase
	}
	if p.SecurityDepositBps > FeePrecisionMax {
		return ErrSecurityDepositBpsTooLarge
	}
	return nil
}

// mulDiv computes a*b/d with a 128 bit intermediate, rounding down.
func mulDiv(a, b, d uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrU64Overflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// mulDivCeil is mulDiv rounding up.
func mulDivCeil(a, b, d uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrU64Overflow
	}
	q, rem := bits.Div64(hi, lo, d)
	if rem != 0 {
		q++
	}
	return q, nil
}

func bpsOf(amount uint64, bps uint32) uint64 {
	// bps <= FeePrecisionMax, so the quotient never exceeds amount.
	v, _ := mulDiv(amount, uint64(bps), uint64(FeePrecisionMax))
	return v
}

// ComputeMinOfferDelta is the least amount an improvement must undercut
// offerPrice by.
func ComputeMinOfferDelta(params *AuctionParameters, offerPrice uint64) uint64 {
	return bpsOf(offerPrice, params.MinOfferDeltaBps)
}

// MaxImprovedOffer is the highest offer price that beats offerPrice.
func MaxImprovedOffer(params *AuctionParameters, offerPrice uint64) uint64 {
	return offerPrice - ComputeMinOfferDelta(params, offerPrice)
}

// ComputeNotionalSecurityDeposit is securityDepositBase plus
// securityDepositBps of amountIn.
func ComputeNotionalSecurityDeposit(params *AuctionParameters, amountIn uint64) (uint64, error) {
	deposit := bpsOf(amountIn, params.SecurityDepositBps)
	sum, carry := bits.Add64(deposit, params.SecurityDepositBase, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: security deposit", ErrU64Overflow)
	}
	return sum, nil
}

// ComputeDepositPenalty returns the penalty charged against the security
// deposit when executing at slot, and the share of it owed to the order
// sender. No penalty accrues until startSlot+gracePeriod has passed; after
// that it grows linearly over penaltyPeriod slots and saturates at
// initialPenaltyBps of the deposit.
func ComputeDepositPenalty(params *AuctionParameters, info *AuctionInfo, slot uint64) (penalty, userReward uint64) {
	graceEnd := info.GraceEndSlot(params)
	if slot <= graceEnd {
		return 0, 0
	}
	late := slot - graceEnd
	if period := uint64(params.PenaltyPeriod); late > period {
		late = period
	}
	maxPenalty := bpsOf(info.SecurityDeposit, params.InitialPenaltyBps)
	penalty, _ = mulDivCeil(maxPenalty, late, uint64(params.PenaltyPeriod))
	userReward = bpsOf(penalty, params.UserPenaltyRewardBps)
	return penalty, userReward
}
