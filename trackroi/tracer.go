// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/kyanite/roitracker/internal/helpers"
)

// TraceStatus classifies the link between a coinstake and the transaction
// that funded it.
type TraceStatus uint8

const (
	// TraceInvalid means the link could not be verified and the hop must
	// be discarded.
	TraceInvalid TraceStatus = iota

	// TraceTerminal means the hop is usable but the chain ends with it.
	TraceTerminal

	// TraceContinue means the funding transaction is itself a comparable
	// coinstake and the walk may continue with it.
	TraceContinue
)

var traceStatusStrs = [...]string{
	TraceInvalid:  "invalid",
	TraceTerminal: "terminal",
	TraceContinue: "continue",
}

func (s TraceStatus) String() string {
	if int(s) < len(traceStatusStrs) {
		return traceStatusStrs[s]
	}
	return "unknown"
}

// traceResult is the outcome of tracePrevious.  Stake and Prev are only set
// for TraceContinue: Stake is the predecessor's stake before its own reward
// and Prev is the predecessor transaction.
type traceResult struct {
	Status TraceStatus
	Stake  btcutil.Amount
	Prev   *wire.MsgTx
}

// traceContext carries the reference values of one aggregation pass.  The
// reward amounts and back height are those of the newest sample and do not
// change during the pass.  lowestHeight and earliestTime track the oldest
// block seen inside the lookback window and only ever move earlier.
type traceContext struct {
	src     TxSource
	rewards RewardSchedule

	mnPayment  btcutil.Amount
	blockValue btcutil.Amount
	backHeight uint32
	lookBack   uint32

	lowestHeight uint32
	earliestTime int64
}

// tracePrevious follows the staked input of tx to the transaction that
// funded it.  On success sa.PrevHeight is set and sa.Depth incremented.
func (c *traceContext) tracePrevious(tx *wire.MsgTx, sa *StakeAnalyze) traceResult {
	invalid := traceResult{Status: TraceInvalid}
	terminal := traceResult{Status: TraceTerminal}

	if len(tx.TxIn) == 0 {
		log.Errorf("Coinstake at height %d has no inputs", sa.CurHeight)
		return invalid
	}
	prevOut := tx.TxIn[0].PreviousOutPoint
	prevTx, blockHash, err := c.src.FetchTransaction(&prevOut.Hash)
	if err != nil || blockHash == nil {
		log.Errorf("No such blockchain transaction %v: %v", prevOut.Hash, err)
		return invalid
	}
	if int(prevOut.Index) >= len(prevTx.TxOut) {
		log.Errorf("Transaction %v has no output %d", prevOut.Hash,
			prevOut.Index)
		return invalid
	}

	prevStake := btcutil.Amount(prevTx.TxOut[prevOut.Index].Value)
	if sa.Stake != prevStake {
		log.Errorf("Stake %v at height %d does not match previous "+
			"output value %v", sa.Stake, sa.CurHeight, prevStake)
		return invalid
	}

	block, err := c.src.FetchBlock(blockHash)
	if err != nil {
		log.Errorf("Could not find previous block index %v: %v",
			blockHash, err)
		return invalid
	}
	prevHeight := uint32(block.Height)

	if prevHeight+c.lookBack > c.backHeight && prevHeight < c.lowestHeight {
		c.lowestHeight = prevHeight
		c.earliestTime = block.Time.Unix()
	}

	if c.mnPayment != c.rewards.MasternodePayment(block.Height) ||
		c.blockValue != c.rewards.BlockValue(block.Height) {
		log.Debugf("Reward structure changed between heights %d and %d",
			prevHeight, sa.CurHeight)
		return invalid
	}

	sa.PrevHeight = prevHeight
	sa.Depth++

	switch {
	case sa.Stake == c.mnPayment:
		// A masternode payout has no staking predecessor.
		return terminal
	case len(tx.TxOut) > 3:
		// Continuing past a split would let split chains converge and
		// count the same history twice.
		return terminal
	case !IsCoinStakeTx(prevTx):
		return terminal
	case prevHeight+c.lookBack < c.backHeight:
		return terminal
	}

	if len(prevTx.TxOut) > 3 {
		prevStake = helpers.SumOutputValues(prevTx.TxOut)
		found := helpers.CountOutputsOfValue(prevTx.TxOut, c.mnPayment)
		switch {
		case found == 0:
			log.Errorf("Masternode payment not found in split "+
				"transaction %v", prevOut.Hash)
			return terminal
		case found > 1:
			return terminal
		}
		prevStake -= c.blockValue
	} else {
		prevStake -= c.blockValue - c.mnPayment
	}

	return traceResult{Status: TraceContinue, Stake: prevStake, Prev: prevTx}
}

// chainWalker lazily walks a stake chain backwards from a sample.  Each call
// to Next yields one verified hop until a terminal or invalid link ends the
// walk.
type chainWalker struct {
	ctx  *traceContext
	tx   *wire.MsgTx
	hop  StakeAnalyze
	done bool
}

// newChainWalker starts a walk at the coinstake tx whose pre-reward stake
// and height are known.
func newChainWalker(ctx *traceContext, tx *wire.MsgTx, stake btcutil.Amount, height uint32) *chainWalker {
	return &chainWalker{
		ctx: ctx,
		tx:  tx,
		hop: StakeAnalyze{Stake: stake, CurHeight: height},
	}
}

// Next traces the pending hop.  It returns false once the walk is over, in
// which case the hop must not be used.
func (w *chainWalker) Next() (StakeAnalyze, TraceStatus, bool) {
	if w.done {
		return StakeAnalyze{}, TraceInvalid, false
	}

	hop := w.hop
	res := w.ctx.tracePrevious(w.tx, &hop)
	switch res.Status {
	case TraceInvalid:
		w.done = true
		metricTraceInvalid().Add(1)
		return StakeAnalyze{}, TraceInvalid, false

	case TraceTerminal:
		w.done = true
		w.tx = nil

	case TraceContinue:
		w.tx = res.Prev
		w.hop = StakeAnalyze{
			Stake:     res.Stake,
			CurHeight: hop.PrevHeight,
			Depth:     hop.Depth,
		}
	}
	return hop, res.Status, true
}
