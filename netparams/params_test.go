// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcutil"
)

func TestRewardSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		height  int32
		value   btcutil.Amount
		payment btcutil.Amount
	}{
		{0, 250 * coin, 0},
		{1000, 250 * coin, 0},
		{1001, 650 * coin, 520 * coin},
		{1474999, 650 * coin, 520 * coin},
		{1475000, 400 * coin, 320 * coin},
		{2000000, 400 * coin, 320 * coin},
	}
	for _, test := range tests {
		if got := MainNetParams.BlockValue(test.height); got != test.value {
			t.Errorf("height %d: block value %v, want %v",
				test.height, got, test.value)
		}
		if got := MainNetParams.MasternodePayment(test.height); got != test.payment {
			t.Errorf("height %d: masternode payment %v, want %v",
				test.height, got, test.payment)
		}
	}
}

func TestMinStakeDepth(t *testing.T) {
	t.Parallel()

	if d := MainNetParams.MinStakeDepth(5000); d != 100 {
		t.Fatalf("depth before upgrade: got %d, want 100", d)
	}
	if d := MainNetParams.MinStakeDepth(5001); d != 600 {
		t.Fatalf("depth after upgrade: got %d, want 600", d)
	}
	if d := RegTestParams.MinStakeDepth(1 << 20); d != 2 {
		t.Fatalf("regtest depth: got %d, want 2", d)
	}
}

func TestMagicAndSpacing(t *testing.T) {
	t.Parallel()

	magic := MainNetParams.Magic()
	if !bytes.Equal(magic[:], []byte{0xa6, 0xf6, 0xa9, 0xf9}) {
		t.Fatalf("unexpected mainnet magic %x", magic)
	}
	if s := TestNetParams.TargetSpacing(); s != 60 {
		t.Fatalf("target spacing: got %d, want 60", s)
	}
}
