// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"sort"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/davecgh/go-spew/spew"
)

// samplesOf returns the store entries for the given coinstakes.  The
// coinstakes must be mined and passed in ascending height order.
func samplesOf(c *mockChain, txs ...*wire.MsgTx) []StakeSample {
	samples := make([]StakeSample, 0, len(txs))
	for _, tx := range txs {
		hash := tx.TxHash()
		block := c.blocks[c.txBlock[hash]]
		samples = append(samples, StakeSample{
			Time:   block.Time.Unix(),
			Height: uint32(block.Height),
			TxHash: hash,
		})
	}
	return samples
}

// sortByHeight orders mined transactions by block height.
func (c *mockChain) sortByHeight(txs []*wire.MsgTx) {
	height := func(tx *wire.MsgTx) int32 {
		return c.blocks[c.txBlock[tx.TxHash()]].Height
	}
	sort.Slice(txs, func(i, j int) bool {
		return height(txs[i]) < height(txs[j])
	})
}

func buildTestChains(p *mockParams, c *mockChain, samples []StakeSample, lookBack uint32) *chainSet {
	e := testEngine(p, c, testTuning(), "")
	back := samples[len(samples)-1]
	ctx := testContext(p, c, back.Height, lookBack)
	ctx.lowestHeight = samples[0].Height
	ctx.earliestTime = samples[0].Time
	return e.buildChains(samples, ctx)
}

func TestBuildChainsSingleAddress(t *testing.T) {
	p := newMockParams()
	c := newMockChain()
	txs := c.stakeChain(p, 1, 1000*coin, 100, 110, 120, 130, 140, 150)

	cs := buildTestChains(p, c, samplesOf(c, txs...), 7200)
	if len(cs.byAddress) != 1 {
		t.Fatalf("expected one address bucket, got %d", len(cs.byAddress))
	}
	chain := cs.byAddress[payAddress(1)]
	if len(chain) != len(txs) {
		t.Fatalf("expected %d hops, got %d: %v", len(txs), len(chain),
			spew.Sdump(chain))
	}

	// The newest sample is walked first and absorbs the older ones.
	for i, hop := range chain {
		wantHeight := uint32(150 - 10*i)
		if hop.CurHeight != wantHeight || hop.Depth != i+1 {
			t.Fatalf("hop %d: unexpected %v", i, &hop)
		}
	}
	if cs.lowestHeight != 100 {
		t.Fatalf("lowest height %d, want 100", cs.lowestHeight)
	}
	if cs.earliestTime != c.blockAt(100).Time.Unix() {
		t.Fatalf("earliest time %d not that of the origin",
			cs.earliestTime)
	}
}

func TestBuildChainsNoDoubleAttribution(t *testing.T) {
	p := newMockParams()
	c := newMockChain()
	var all []*wire.MsgTx
	all = append(all, c.stakeChain(p, 1, 1000*coin, 100, 104, 110, 117)...)
	all = append(all, c.stakeChain(p, 2, 5000*coin, 101, 105, 111, 118)...)
	all = append(all, c.stakeChain(p, 3, 2500*coin, 102, 106, 112, 119)...)
	c.sortByHeight(all)

	cs := buildTestChains(p, c, samplesOf(c, all...), 7200)
	if len(cs.byAddress) != 3 {
		t.Fatalf("expected three address buckets, got %d",
			len(cs.byAddress))
	}

	owner := make(map[uint32]string)
	for addr, chain := range cs.byAddress {
		for _, hop := range chain {
			if other, ok := owner[hop.CurHeight]; ok {
				t.Fatalf("height %d attributed to %s and %s",
					hop.CurHeight, other, addr)
			}
			owner[hop.CurHeight] = addr
		}
	}
	if len(owner) != len(all) || cs.points() != len(all) {
		t.Fatalf("expected %d hops, got %d", len(all), cs.points())
	}
	for id := byte(1); id <= 3; id++ {
		if n := len(cs.byAddress[payAddress(id)]); n != 3 {
			t.Fatalf("address %d: expected 3 hops, got %d", id, n)
		}
	}
}

func TestBuildChainsAmbiguousPayee(t *testing.T) {
	p := newMockParams()
	c := newMockChain()
	good := c.stakeChain(p, 1, 1000*coin, 100, 110)

	// A coinstake whose stake output equals the masternode payment cannot
	// be told apart from the payment itself.
	origin := c.originTx(p.mnPayment-p.spiff(), payScript(2))
	c.mine(origin, 101)
	bad := coinStakeTx(origin, 0, p.spiff(), p.mnPayment, payScript(2))
	c.mine(bad, 120)

	cs := buildTestChains(p, c, samplesOf(c, good[0], bad), 7200)
	if _, ok := cs.byAddress[payAddress(2)]; ok {
		t.Fatal("ambiguous coinstake was attributed")
	}
	if _, ok := cs.seen[120]; ok {
		t.Fatal("ambiguous coinstake height marked as seen")
	}
	if n := len(cs.byAddress[payAddress(1)]); n != 1 {
		t.Fatalf("expected 1 hop for the valid address, got %d", n)
	}
}

func TestBuildChainsStopsAtSplit(t *testing.T) {
	p := newMockParams()
	c := newMockChain()
	txs := c.stakeChain(p, 1, 1000*coin, 100, 110)
	split := splitStakeTx(txs[0], 1, 3, p.spiff(), p.mnPayment, payScript(1))
	c.mine(split, 120)
	tail := coinStakeTx(split, 1, p.spiff(), p.mnPayment, payScript(1))
	c.mine(tail, 130)

	cs := buildTestChains(p, c, samplesOf(c, txs[0], split, tail), 7200)
	chain := cs.byAddress[payAddress(1)]
	if len(chain) != 3 {
		t.Fatalf("expected 3 hops, got %v", spew.Sdump(chain))
	}

	// The walk from 130 passes through the split at 120 and ends there.
	// The sample at 110 starts its own walk.
	want := []struct {
		height uint32
		depth  int
		stake  btcutil.Amount
	}{
		{130, 1, btcutil.Amount(split.TxOut[1].Value)},
		{120, 2, 1000*coin + p.spiff()},
		{110, 1, 1000 * coin},
	}
	for i, w := range want {
		hop := chain[i]
		if hop.CurHeight != w.height || hop.Depth != w.depth ||
			hop.Stake != w.stake {

			t.Fatalf("hop %d: got %v, want height %d depth %d stake %v",
				i, &hop, w.height, w.depth, w.stake)
		}
	}
}

func TestBuildChainsSkipsMissingSample(t *testing.T) {
	p := newMockParams()
	c := newMockChain()
	txs := c.stakeChain(p, 1, 1000*coin, 100, 110, 120)
	samples := samplesOf(c, txs...)
	delete(c.txs, txs[0].TxHash())

	cs := buildTestChains(p, c, samples, 7200)

	// The walk from 120 fails on its first hop and the sample at 110 can't
	// be fetched, so nothing is attributed.
	if n := cs.points(); n != 0 {
		t.Fatalf("expected no hops, got %v", spew.Sdump(cs.byAddress))
	}
}
