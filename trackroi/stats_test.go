// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"math"
	"testing"

	"github.com/btcsuite/btcutil"
)

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// hops returns n hops of stake, each aged over age blocks.
func hops(n int, stake btcutil.Amount, age uint32) []StakeAnalyze {
	chain := make([]StakeAnalyze, n)
	for i := range chain {
		cur := 20000 + age*uint32(n-i)
		chain[i] = StakeAnalyze{
			Stake:      stake,
			CurHeight:  cur,
			PrevHeight: cur - age,
			Depth:      i + 1,
		}
	}
	return chain
}

// statsInput returns an input spanning 20 blocks over 1200 seconds, which is
// 1440 blocks per day, with a 10 coin staking reward.
func statsInput(byAddress map[string][]StakeAnalyze) *roiInput {
	n := 0
	for _, chain := range byAddress {
		n += len(chain)
	}
	return &roiInput{
		chains: &chainSet{
			byAddress:    byAddress,
			lowestHeight: 1000,
			earliestTime: 100000,
		},
		sampleCount:    n,
		capacity:       n,
		backHeight:     1020,
		backTime:       101200,
		collectionTime: 900,
		blockValue:     30 * coin,
		mnPayment:      20 * coin,
		collateral:     10000 * coin,
		enabled:        1000,
	}
}

func statsTuning() *Tuning {
	t := DefaultTuning()
	t.MinSamples = 1
	t.MinBucketSize = 2
	t.MinAddrBuckets = 2
	t.MinWeightPoints = 6
	return &t
}

func TestComputeROIEqualWeights(t *testing.T) {
	in := statsInput(map[string][]StakeAnalyze{
		"a": hops(3, 10000*coin, 10000),
		"b": hops(3, 10000*coin, 10000),
	})
	s, err := computeROI(in, statsTuning())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1440 blocks per day * 365 days * 10 coin over 10000 coin aged 10000
	// blocks.
	checks := []struct {
		name      string
		got, want float64
	}{
		{"blocks per day", s.BlocksPerDay, 1440},
		{"staking ROI", s.StakingROI, 5.256},
		{"range ROI", s.RangeROI, 5.256},
		{"masternode ROI", s.MasternodeROI, 105.12},
		{"qualified weight", s.QualifiedWeight, 1e16},
		{"trimmed weight", s.TrimmedWeight, 1e16},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
	if s.QualifiedAddrs != 2 || s.QualifiedPoints != 6 ||
		s.TotalPoints != 6 || s.TrimmedPoints != 6 {

		t.Errorf("unexpected counts: %+v", s)
	}
	if s.LowConfidence {
		t.Error("unexpected low confidence")
	}
	if s.CaptureWindow != 1200 || s.CollectionTime != 900 {
		t.Errorf("unexpected windows: capture %d, collection %d",
			s.CaptureWindow, s.CollectionTime)
	}
}

func TestComputeROITrimsOutliers(t *testing.T) {
	in := statsInput(map[string][]StakeAnalyze{
		"a": hops(3, 10000*coin, 10000),
		"b": hops(3, 10000*coin, 10000),
		"c": hops(1, 1*coin, 10000),
	})
	s, err := computeROI(in, statsTuning())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalPoints != 7 || s.TrimmedPoints != 6 {
		t.Fatalf("expected 6 of 7 points kept, got %d of %d",
			s.TrimmedPoints, s.TotalPoints)
	}
	if !almostEqual(s.RangeROI, 5.256) {
		t.Errorf("range ROI %v, want 5.256", s.RangeROI)
	}

	// The single hop address does not qualify.
	if s.QualifiedAddrs != 2 || !almostEqual(s.StakingROI, 5.256) {
		t.Errorf("unexpected qualified stats: %d addrs, ROI %v",
			s.QualifiedAddrs, s.StakingROI)
	}
}

func TestComputeROIWeightBelowReward(t *testing.T) {
	in := statsInput(map[string][]StakeAnalyze{
		"a": hops(3, 1, 1),
		"b": hops(3, 1, 1),
	})
	s, err := computeROI(in, statsTuning())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StakingROI != 0 {
		t.Errorf("staking ROI %v, want 0", s.StakingROI)
	}
	if !s.LowConfidence {
		t.Error("expected low confidence")
	}
}

func TestComputeROIConfidence(t *testing.T) {
	tests := []struct {
		name      string
		chains    map[string][]StakeAnalyze
		minPoints int
		lowConf   bool
	}{
		{
			name: "qualified",
			chains: map[string][]StakeAnalyze{
				"a": hops(3, 10000*coin, 10000),
				"b": hops(3, 10000*coin, 10000),
			},
			minPoints: 6,
		},
		{
			name: "too few qualified addresses",
			chains: map[string][]StakeAnalyze{
				"a": hops(6, 10000*coin, 10000),
				"b": hops(2, 10000*coin, 10000),
			},
			minPoints: 6,
			lowConf:   true,
		},
		{
			name: "too few weight points",
			chains: map[string][]StakeAnalyze{
				"a": hops(3, 10000*coin, 10000),
				"b": hops(3, 10000*coin, 10000),
				"c": hops(2, 10000*coin, 10000),
			},
			minPoints: 7,
			lowConf:   true,
		},
	}

	for _, test := range tests {
		tuning := statsTuning()
		tuning.MinWeightPoints = test.minPoints
		s, err := computeROI(statsInput(test.chains), tuning)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if s.LowConfidence != test.lowConf {
			t.Errorf("%s: low confidence %v, want %v", test.name,
				s.LowConfidence, test.lowConf)
		}
	}
}

func TestComputeROIInsufficientData(t *testing.T) {
	in := statsInput(map[string][]StakeAnalyze{
		"a": hops(3, 10000*coin, 10000),
	})
	_, err := computeROI(in, statsTuning())
	if !IsError(err, ErrInsufficientAddresses) {
		t.Fatalf("expected ErrInsufficientAddresses, got %v", err)
	}
	want := "Not enough valid data, have 1 addresses, need more than 2. " +
		"Please wait."
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}

	tuning := statsTuning()
	tuning.MinSamples = 10
	_, err = computeROI(in, tuning)
	if !IsError(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	if !IsInsufficientData(err) {
		t.Fatal("sample shortage not reported as insufficient data")
	}
}

func TestComputeROINoEnabledMasternodes(t *testing.T) {
	in := statsInput(map[string][]StakeAnalyze{
		"a": hops(3, 10000*coin, 10000),
		"b": hops(3, 10000*coin, 10000),
	})
	in.enabled = 0
	s, err := computeROI(in, statsTuning())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Enabled != 1 || !almostEqual(s.MasternodeROI, 105120) {
		t.Fatalf("enabled %d, masternode ROI %v", s.Enabled,
			s.MasternodeROI)
	}
}

func TestHopWeight(t *testing.T) {
	sa := StakeAnalyze{Stake: 5 * coin, CurHeight: 300, PrevHeight: 200}
	if got := hopWeight(&sa, 0); got != 500*coin {
		t.Errorf("weight %v, want %v", got, 500*coin)
	}
	if got := hopWeight(&sa, 100); got != 1000*coin {
		t.Errorf("weight with depth %v, want %v", got, 1000*coin)
	}
}
