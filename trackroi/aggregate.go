// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// chainSet is the result of one aggregation pass.
type chainSet struct {
	// byAddress groups every verified hop by the payee address of the
	// sample its walk started from.
	byAddress map[string][]StakeAnalyze

	// seen holds every block height already attributed to a chain.
	seen map[uint32]struct{}

	lowestHeight uint32
	earliestTime int64
}

func (cs *chainSet) add(addr string, sa StakeAnalyze) {
	cs.byAddress[addr] = append(cs.byAddress[addr], sa)
	cs.seen[sa.CurHeight] = struct{}{}
}

// points returns the total number of hops in the set.
func (cs *chainSet) points() int {
	n := 0
	for _, chain := range cs.byAddress {
		n += len(chain)
	}
	return n
}

// sampleStake inspects a sample's coinstake and returns its pre-reward stake
// and the script of the output that pays the staker.
func sampleStake(tx *wire.MsgTx, mnPayment, blockValue btcutil.Amount) (btcutil.Amount, []byte, bool) {
	var (
		gross btcutil.Amount
		found int
		payee = -1
	)
	for i, out := range tx.TxOut {
		v := btcutil.Amount(out.Value)
		if v == 0 {
			continue
		}
		if v == mnPayment {
			found++
		} else {
			payee = i
		}
		gross += v
	}

	switch {
	case found == 0:
		log.Errorf("Masternode payment not found in coinstake %v",
			tx.TxHash())
		return 0, nil, false
	case found > 1:
		// More than one output equals the masternode payment, so the
		// payee cannot be told apart.
		log.Debugf("Ambiguous masternode payment in coinstake %v",
			tx.TxHash())
		return 0, nil, false
	case payee < 0:
		return 0, nil, false
	}
	return gross - blockValue, tx.TxOut[payee].PkScript, true
}

// buildChains walks every unseen sample of the snapshot, newest first, back
// through its funding transactions and groups the verified hops by payee
// address.  Samples that fail validation are skipped without affecting the
// rest of the pass.
func (e *Engine) buildChains(snapshot []StakeSample, ctx *traceContext) *chainSet {
	cs := &chainSet{
		byAddress: make(map[string][]StakeAnalyze, 2*len(snapshot)),
		seen:      make(map[uint32]struct{}, len(snapshot)),
	}

	for i := len(snapshot) - 1; i >= 0; i-- {
		sample := &snapshot[i]
		if _, ok := cs.seen[sample.Height]; ok {
			continue
		}

		tx, blockHash, err := e.cfg.Source.FetchTransaction(&sample.TxHash)
		if err != nil || blockHash == nil {
			log.Errorf("No such blockchain transaction %v: %v",
				sample.TxHash, err)
			continue
		}

		stake, pkScript, ok := sampleStake(tx, ctx.mnPayment, ctx.blockValue)
		if !ok {
			continue
		}
		addr, err := e.cfg.Addresses.DecodeAddress(pkScript)
		if err != nil {
			log.Debugf("Unable to decode payee of %v: %v",
				sample.TxHash, err)
			continue
		}

		walker := newChainWalker(ctx, tx, stake, sample.Height)
		for {
			hop, status, ok := walker.Next()
			if !ok {
				break
			}
			if hop.Depth > 1 {
				if _, dup := cs.seen[hop.CurHeight]; dup {
					break
				}
			}
			cs.add(addr, hop)
			if status != TraceContinue {
				break
			}
		}
	}

	cs.lowestHeight = ctx.lowestHeight
	cs.earliestTime = ctx.earliestTime
	return cs
}
