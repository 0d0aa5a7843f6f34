// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"fmt"
	"strconv"

	"github.com/btcsuite/btcutil"
)

// Field is one labeled line of an ROI report.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ComputeROI runs an aggregation pass over a snapshot of the sample store
// and returns the raw statistics.  The sample lock is only held while the
// snapshot is taken.
func (e *Engine) ComputeROI() (*ROIStats, error) {
	if !e.cfg.State.TxIndexEnabled() {
		return nil, roiError(ErrTxIndexDisabled,
			"getroi: -txindex REQUIRED to enable ROI calculation", nil)
	}

	snapshot, capacity, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	back := &snapshot[len(snapshot)-1]
	front := &snapshot[0]
	backHeight := int32(back.Height)
	rewards := e.cfg.Rewards
	ctx := &traceContext{
		src:          e.cfg.Source,
		rewards:      rewards,
		mnPayment:    rewards.MasternodePayment(backHeight),
		blockValue:   rewards.BlockValue(backHeight),
		backHeight:   back.Height,
		lookBack:     e.lookBack(capacity),
		lowestHeight: front.Height,
		earliestTime: front.Time,
	}

	chains := e.buildChains(snapshot, ctx)

	enabled, err := e.cfg.Masternodes.CountEnabled()
	if err != nil {
		log.Warnf("Unable to count enabled masternodes: %v", err)
	}

	in := &roiInput{
		chains:         chains,
		sampleCount:    len(snapshot),
		capacity:       capacity,
		backHeight:     back.Height,
		backTime:       back.Time,
		collectionTime: back.Time - front.Time,
		blockValue:     ctx.blockValue,
		mnPayment:      ctx.mnPayment,
		collateral:     rewards.MasternodeCollateral(backHeight),
		minStakeDepth:  e.cfg.Params.MinStakeDepth(backHeight),
		enabled:        enabled,
	}
	stats, err := computeROI(in, &e.cfg.Tuning)
	if err != nil {
		return nil, err
	}

	metricMasternodeROI().Set(stats.MasternodeROI)
	if !stats.LowConfidence {
		metricStakingROI().Set(stats.StakingROI)
		metricRangeROI().Set(stats.RangeROI)
	}
	return stats, nil
}

// GenerateROI returns the ROI report as an ordered list of labeled fields.
// Verbose adds sample counts and capture windows.
func (e *Engine) GenerateROI(verbose bool) ([]Field, error) {
	stats, err := e.ComputeROI()
	if err != nil {
		return nil, err
	}
	return formatROI(stats, e.cfg.Tuning.UseRange, verbose), nil
}

func formatROI(s *ROIStats, useRange, verbose bool) []Field {
	var fields []Field
	add := func(label, format string, args ...interface{}) {
		fields = append(fields, Field{label, fmt.Sprintf(format, args...)})
	}

	if s.LowConfidence {
		add("no staking  ROI", "insufficient data")
	} else {
		stake := s.QualifiedWeight / btcutil.SatoshiPerBitcoin
		add("staking    ROI", "%4.1f%%", s.StakingROI)
		if useRange {
			add(" range     ROI", "%4.1f%%", s.RangeROI)
			stake = (stake + s.TrimmedWeight/btcutil.SatoshiPerBitcoin) / 2
		}
		add("network  stake", "%s", withCommas(int64(stake)))
		if verbose {
			add(fmt.Sprintf("best addrs %3d", s.QualifiedAddrs),
				"%d of %d samples", s.QualifiedPoints, s.TotalPoints)
		}
	}

	if verbose {
		label, unit := "capture window", "hours"
		if s.LowConfidence {
			label, unit = "data     cache", "hours, please wait"
		}
		add(label, "%3.1f %s", hours(s.CollectionTime), unit)
	}
	add("--------------", "--------------")

	add("masternode ROI", "%4.1f%%", s.MasternodeROI)
	collateral := int64(s.Collateral/btcutil.SatoshiPerBitcoin) * int64(s.Enabled)
	add("tot collateral", "%s", withCommas(collateral))
	add("enabled  nodes", "%d", s.Enabled)
	add("blocks per day", "%4.1f", s.BlocksPerDay)
	if verbose {
		add("capture window", "%3.1f hours", hours(s.CaptureWindow))
	}
	return fields
}

func hours(seconds int64) float64 {
	return float64(seconds)/3600 + 0.05
}

// withCommas formats n with thousands separators.
func withCommas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := len(s) > 0 && s[0] == '-'
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3+1)
	if neg {
		out = append(out, '-')
	}
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}
