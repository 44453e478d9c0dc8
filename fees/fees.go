// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fees computes the protocol fee carved out of swap proceeds.
package fees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Protocol fee: 100 basis points of the observed output.
const (
	RateBps     uint64 = 100
	Denominator uint64 = 10_000
)

// ErrArithmetic reports an overflow, underflow or division by zero.
var ErrArithmetic = errors.New("arithmetic error")

// Compute returns floor(amount * rateBps / denom). The product is formed in
// 256 bits so truncation happens once, at the division.
func Compute(amount, rateBps, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, fmt.Errorf("%w: zero fee denominator", ErrArithmetic)
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rateBps))
	fee.Div(fee, uint256.NewInt(denom))
	if !fee.IsUint64() {
		return 0, fmt.Errorf("%w: fee %s exceeds 64 bits", ErrArithmetic, fee.Dec())
	}
	return fee.Uint64(), nil
}

// Split divides proceeds into the user portion and the protocol fee.
// user + fee == proceeds.
func Split(proceeds uint64) (user, fee uint64, err error) {
	fee, err = Compute(proceeds, RateBps, Denominator)
	if err != nil {
		return 0, 0, err
	}
	if fee > proceeds {
		return 0, 0, fmt.Errorf("%w: fee %d exceeds proceeds %d", ErrArithmetic, fee, proceeds)
	}
	return proceeds - fee, fee, nil
}

// Delta returns after - before, failing on underflow.
func Delta(before, after uint64) (uint64, error) {
	if after < before {
		return 0, fmt.Errorf("%w: balance fell from %d to %d", ErrArithmetic, before, after)
	}
	return after - before, nil
}
