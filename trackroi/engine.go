// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/kyanite/roitracker/metrics"
)

// flushInterval is how much block time may pass between automatic cache
// flushes.
const flushInterval = 3600

var (
	metricSamples       = metrics.LazyLoadGauge("roi_samples", "Samples held by the ROI sample store")
	metricRecorded      = metrics.LazyLoadCounter("roi_samples_recorded", "Coinstake samples recorded")
	metricEpochResets   = metrics.LazyLoadCounter("roi_epoch_resets", "Sample store resets caused by reward changes")
	metricCacheFlushes  = metrics.LazyLoadCounter("roi_cache_flushes", "Successful roicache.dat writes")
	metricTraceInvalid  = metrics.LazyLoadCounter("roi_trace_invalid", "Chain walks abandoned on inconsistent data")
	metricStakingROI    = metrics.LazyLoadGauge("roi_staking_pct", "Qualified address staking ROI in percent")
	metricRangeROI      = metrics.LazyLoadGauge("roi_range_pct", "Outlier trimmed staking ROI in percent")
	metricMasternodeROI = metrics.LazyLoadGauge("roi_masternode_pct", "Masternode ROI in percent")
)

// Tuning holds the thresholds of the ROI analysis.
type Tuning struct {
	// SampleDays is the number of days of new coinstakes to collect.
	SampleDays int

	// LookBackDays is how far back a chain walk may reach.
	LookBackDays int

	// MinSamples is the minimum sample store size to calculate ROI.
	MinSamples int

	// MinBucketSize is the number of chain entries an address must
	// exceed to be a qualified address.
	MinBucketSize int

	// MinAddrBuckets is the minimum number of address buckets, and of
	// qualified addresses for a confident staking ROI.
	MinAddrBuckets int

	// MinWeightPoints is the minimum number of qualified weight points for
	// a confident staking ROI.
	MinWeightPoints int

	// UseRange adds the outlier trimmed ROI to reports.
	UseRange bool

	// CSVLog dumps every analysis record to the debug log.
	CSVLog bool
}

// DefaultTuning returns the stock analysis thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		SampleDays:      2,
		LookBackDays:    5,
		MinSamples:      30,
		MinBucketSize:   10,
		MinAddrBuckets:  7,
		MinWeightPoints: 480,
		UseRange:        true,
	}
}

// Config is the set of collaborators and settings an Engine is built from.
type Config struct {
	Params      ChainParams
	Rewards     RewardSchedule
	Masternodes MasternodeCounter
	Source      TxSource
	Addresses   AddressDecoder
	State       NodeState
	Tuning      Tuning

	// DataDir is where roicache.dat lives.  Persistence is disabled when
	// it is empty.
	DataDir string

	// Now returns the wall clock time.  time.Now is used when nil.
	Now func() time.Time
}

// Engine tracks coinstake samples and derives staking and masternode ROI
// from them.
type Engine struct {
	cfg   Config
	cache *CacheFile

	// flushMtx serializes cache writes.
	flushMtx sync.Mutex

	mtx            sync.Mutex
	samples        []StakeSample
	sampleInterval int
	oldMNPayment   btcutil.Amount
	oldBlockValue  btcutil.Amount
	lastFlush      int64
}

// New creates an engine with an empty sample store.
func New(cfg *Config) *Engine {
	e := &Engine{cfg: *cfg}
	if e.cfg.Now == nil {
		e.cfg.Now = time.Now
	}
	if cfg.DataDir != "" {
		e.cache = NewCacheFile(cfg.DataDir, cfg.Params.Magic())
	}
	return e
}

// lookBack returns the lookback window in blocks.
func (e *Engine) lookBack(sampleInterval int) uint32 {
	t := &e.cfg.Tuning
	return uint32(sampleInterval * t.LookBackDays / t.SampleDays)
}

// RecordIfEligible adds the coinstake tx mined in block to the sample store.
// It is called for every transaction of every newly connected block and
// silently ignores anything that is not a staking reward.
func (e *Engine) RecordIfEligible(tx *wire.MsgTx, block *Block) {
	state := e.cfg.State
	if !state.WalletLoaded() || !state.TxIndexEnabled() || !state.IsSynced() {
		return
	}
	if !IsCoinStakeTx(tx) {
		return
	}

	height := block.Height
	blockValue := e.cfg.Rewards.BlockValue(height)
	mnPayment := e.cfg.Rewards.MasternodePayment(height)
	if blockValue == 0 || blockValue == mnPayment {
		return
	}

	blockTime := block.Time.Unix()
	sample := StakeSample{
		Time:   blockTime,
		Height: uint32(height),
		TxHash: tx.TxHash(),
	}

	if !e.record(&sample, blockValue, mnPayment) {
		return
	}

	e.mtx.Lock()
	flush := e.lastFlush+flushInterval < blockTime
	if flush {
		e.lastFlush = blockTime
	}
	e.mtx.Unlock()

	if flush {
		if err := e.Flush(); err != nil {
			log.Errorf("Unable to write ROI cache: %v", err)
		}
	}
}

// record appends sample under the sample lock and reports whether it was
// accepted.
func (e *Engine) record(sample *StakeSample, blockValue, mnPayment btcutil.Amount) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.sampleInterval == 0 {
		e.sampleInterval = e.cfg.Tuning.SampleDays * 86400 /
			int(e.cfg.Params.TargetSpacing())
		if cap(e.samples) < e.sampleInterval+10 {
			s := make([]StakeSample, len(e.samples), e.sampleInterval+10)
			copy(s, e.samples)
			e.samples = s
		}
		e.oldMNPayment = mnPayment
		e.oldBlockValue = blockValue
	} else if mnPayment != e.oldMNPayment || blockValue != e.oldBlockValue {
		log.Infof("Reward change at height %d (block value %v, "+
			"masternode payment %v), restarting ROI samples",
			sample.Height, blockValue, mnPayment)
		e.oldMNPayment = mnPayment
		e.oldBlockValue = blockValue
		e.samples = e.samples[:0]
		e.lastFlush = 0
		metricEpochResets().Add(1)
	}

	n := len(e.samples)
	if n > 0 && sample.Height <= e.samples[n-1].Height {
		return false
	}
	for i := range e.samples {
		if e.samples[i].Height == sample.Height {
			log.Errorf("Duplicate coinstake sample at height %d",
				sample.Height)
			return false
		}
	}

	e.samples = append(e.samples, *sample)
	log.Debugf("Recorded coinstake %v height %d time %d (%d samples)",
		sample.TxHash, sample.Height, sample.Time, n+1)

	if excess := len(e.samples) - e.sampleInterval; excess > 0 {
		copy(e.samples, e.samples[excess:])
		e.samples = e.samples[:e.sampleInterval]
	}

	metricRecorded().Add(1)
	metricSamples().Set(float64(len(e.samples)))
	return true
}

// ResetSamples clears the sample store and forces the next automatic flush.
func (e *Engine) ResetSamples() {
	e.mtx.Lock()
	e.samples = e.samples[:0]
	e.lastFlush = 0
	e.mtx.Unlock()
	metricSamples().Set(0)
}

// Samples returns a copy of the sample store.
func (e *Engine) Samples() []StakeSample {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	s := make([]StakeSample, len(e.samples))
	copy(s, e.samples)
	return s
}

// snapshot validates the query preconditions and returns a copy of the
// sample store along with its capacity.
func (e *Engine) snapshot() ([]StakeSample, int, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.sampleInterval == 0 {
		return nil, 0, roiError(ErrNotReady,
			"Not enough data, waiting for confirmations", nil)
	}
	n := len(e.samples)
	if n < e.cfg.Tuning.MinSamples {
		str := "Not enough data, need %d confirmations, have %d"
		return nil, 0, roiError(ErrInsufficientSamples,
			fmt.Sprintf(str, e.cfg.Tuning.MinSamples, n), nil)
	}
	s := make([]StakeSample, n)
	copy(s, e.samples)
	return s, e.sampleInterval, nil
}
