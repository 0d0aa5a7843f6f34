// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil"
)

// roiInput collects everything computeROI needs from an aggregation pass.
type roiInput struct {
	chains      *chainSet
	sampleCount int
	capacity    int

	backHeight     uint32
	backTime       int64
	collectionTime int64

	blockValue    btcutil.Amount
	mnPayment     btcutil.Amount
	collateral    btcutil.Amount
	minStakeDepth int32
	enabled       int
}

// ROIStats holds the estimates of one ROI query.  All ROI values are
// annualized percentages and weights are in satoshi-blocks.
type ROIStats struct {
	StakingROI    float64
	RangeROI      float64
	MasternodeROI float64
	BlocksPerDay  float64

	// QualifiedAddrs counts addresses with more than MinBucketSize hops and
	// QualifiedPoints the hops of those addresses.
	QualifiedAddrs  int
	QualifiedPoints int
	TotalPoints     int
	TrimmedPoints   int

	QualifiedWeight float64
	TrimmedWeight   float64

	// CollectionTime is the time spanned by the sample store and
	// CaptureWindow the time spanned by the analysis, both in seconds.
	CollectionTime int64
	CaptureWindow  int64

	Enabled    int
	Collateral btcutil.Amount

	// LowConfidence is set when the staking estimates rest on too little
	// data to be reported.
	LowConfidence bool
}

// rewardsPerDay returns the number of blocks per day observed between the
// lowest height and the back height.
func rewardsPerDay(blocks uint32, seconds int64) float64 {
	if seconds <= 0 {
		return 0
	}
	return 86400 * float64(blocks) / float64(seconds)
}

// hopWeight returns stake times the number of blocks the stake aged.
func hopWeight(sa *StakeAnalyze, minStakeDepth int32) float64 {
	age := int64(sa.CurHeight) - int64(sa.PrevHeight) + int64(minStakeDepth)
	return float64(sa.Stake) * float64(age)
}

// computeROI turns the aggregated chains into staking and masternode ROI.
func computeROI(in *roiInput, t *Tuning) (*ROIStats, error) {
	cs := in.chains
	if in.sampleCount < t.MinSamples {
		str := "Not enough data, need %d confirmations, have %d"
		return nil, roiError(ErrInsufficientSamples,
			fmt.Sprintf(str, t.MinSamples, in.sampleCount), nil)
	}
	if len(cs.byAddress) < t.MinAddrBuckets {
		str := "Not enough valid data, have %d addresses, need more " +
			"than %d. Please wait."
		return nil, roiError(ErrInsufficientAddresses,
			fmt.Sprintf(str, len(cs.byAddress), t.MinAddrBuckets), nil)
	}

	s := &ROIStats{
		CollectionTime: in.collectionTime,
		CaptureWindow:  in.backTime - cs.earliestTime,
		Enabled:        in.enabled,
		Collateral:     in.collateral,
	}
	if s.Enabled < 1 {
		s.Enabled = 1
	}
	s.BlocksPerDay = rewardsPerDay(in.backHeight-cs.lowestHeight,
		s.CaptureWindow)

	if in.collateral > 0 {
		s.MasternodeROI = s.BlocksPerDay * float64(in.mnPayment) * 36500 /
			float64(s.Enabled) / float64(in.collateral)
	}

	spiff := float64(in.blockValue - in.mnPayment)
	yearly := s.BlocksPerDay * 36500 * spiff

	weights := make([]float64, 0, 2*in.sampleCount)
	var totalWeight float64
	for addr, chain := range cs.byAddress {
		var setWeight float64
		for i := range chain {
			w := hopWeight(&chain[i], in.minStakeDepth)
			weights = append(weights, w)
			setWeight += w
		}
		totalWeight += setWeight

		if t.CSVLog {
			logCSV(addr, chain)
		}

		if len(chain) > t.MinBucketSize {
			s.QualifiedWeight += setWeight / float64(len(chain))
			s.QualifiedAddrs++
			s.QualifiedPoints += len(chain)
		}
	}
	s.TotalPoints = len(weights)

	if s.QualifiedAddrs > 0 {
		s.QualifiedWeight /= float64(s.QualifiedAddrs)
	}
	if s.QualifiedAddrs > 0 && s.QualifiedWeight >= spiff {
		s.StakingROI = yearly / s.QualifiedWeight
	}

	if s.TotalPoints > 0 {
		mean := totalWeight / float64(s.TotalPoints)
		adjust := float64(in.capacity) / float64(in.sampleCount)
		lower := adjust * mean / 100
		upper := adjust * mean * 10
		for _, w := range weights {
			if w < lower || w > upper {
				continue
			}
			s.TrimmedWeight += w
			s.TrimmedPoints++
		}
		if s.TrimmedPoints > 0 {
			s.TrimmedWeight /= float64(s.TrimmedPoints)
			s.RangeROI = yearly / s.TrimmedWeight
		}
	}

	s.LowConfidence = s.StakingROI < 1 || s.RangeROI < 1 ||
		s.QualifiedAddrs < t.MinAddrBuckets ||
		s.QualifiedPoints < t.MinWeightPoints

	log.Debugf("Qualified staking ROI %3.2f%%, addrs %d, samps %d, cnt %d, "+
		"weight %8.0f", s.StakingROI, s.QualifiedAddrs, s.QualifiedPoints,
		s.TotalPoints, s.QualifiedWeight)
	log.Debugf("Trimmed staking ROI %3.2f%%, kept %d of %d, weight %8.0f",
		s.RangeROI, s.TrimmedPoints, s.TotalPoints, s.TrimmedWeight)
	log.Debugf("Masternode ROI %3.2f%%", s.MasternodeROI)
	return s, nil
}

// logCSV writes an address bucket to the debug log in a spreadsheet friendly
// layout.
func logCSV(addr string, chain []StakeAnalyze) {
	log.Debugf("CSV, %d, pubadd, %s", len(chain), addr)
	log.Debugf("%v", newLogClosure(func() string {
		lines := make([]string, len(chain))
		for i := range chain {
			lines[i] = fmt.Sprintf("CSV, %d, %v", len(chain), &chain[i])
		}
		return strings.Join(lines, "\n")
	}))
}
