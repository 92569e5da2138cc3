package domain

import "math/bits"

// SettleCheckpoint computes the payout for one account against one
// checkpoint's accumulator.
//
// increase is how much the accumulator grew since the account's last
// withdrawal from this checkpoint. The payout is the account's bps share of
// that growth, floor-divided against the checkpoint's total bps. The
// sub-unit modulus is returned as the checkpoint's new remainder, so
// precision lost by one withdrawal is picked up by a later one from the same
// checkpoint. The intermediate product is taken at 128 bits, so the math is
// exact for any uint64 increase.
func SettleCheckpoint(increase uint64, accountBps, totalBps uint16, remainder uint64) (payout, newRemainder uint64) {
	if totalBps == 0 {
		return 0, remainder
	}

	if accountBps >= totalBps {
		// Sole recipient: the whole increase is owed and the remainder
		// stays below totalBps, contributing nothing.
		return increase, remainder
	}

	hi, lo := bits.Mul64(increase, uint64(accountBps))

	var carry uint64
	lo, carry = bits.Add64(lo, remainder, 0)
	hi += carry

	// hi < accountBps < totalBps, so Div64 cannot trap.
	payout, newRemainder = bits.Div64(hi, lo, uint64(totalBps))

	return payout, newRemainder
}
