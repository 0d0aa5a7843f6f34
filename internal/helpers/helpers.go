// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package helpers provides convenience functions for working with
// transaction outputs.  This package is intended for internal use only.
package helpers

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// SumOutputValues sums up the list of TxOuts and returns an Amount.
func SumOutputValues(outputs []*wire.TxOut) (totalOutput btcutil.Amount) {
	for _, txOut := range outputs {
		totalOutput += btcutil.Amount(txOut.Value)
	}
	return totalOutput
}

// CountOutputsOfValue returns how many outputs pay exactly value.
func CountOutputsOfValue(outputs []*wire.TxOut, value btcutil.Amount) (n int) {
	for _, txOut := range outputs {
		if btcutil.Amount(txOut.Value) == value {
			n++
		}
	}
	return n
}
