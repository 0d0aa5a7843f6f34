// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"

	"github.com/kyanite/roitracker/netparams"
	"github.com/kyanite/roitracker/trackroi"
)

func TestParseAndSetDebugLevels(t *testing.T) {
	defer setLogLevels(defaultLogLevel)

	tests := []struct {
		level string
		fails bool
	}{
		{level: "debug"},
		{level: "TROI=trace,TIDX=warn"},
		{level: "verbose", fails: true},
		{level: "TROI", fails: true},
		{level: "NOPE=debug", fails: true},
		{level: "TROI=loud", fails: true},
	}
	for _, test := range tests {
		err := parseAndSetDebugLevels(test.level)
		if test.fails != (err != nil) {
			t.Errorf("%q: unexpected result %v", test.level, err)
		}
	}
}

func TestValidateTuning(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*trackroi.Tuning)
		fails  bool
	}{
		{"defaults", func(*trackroi.Tuning) {}, false},
		{"zero sample days", func(tu *trackroi.Tuning) { tu.SampleDays = 0 }, true},
		{"short lookback", func(tu *trackroi.Tuning) { tu.LookBackDays = 1 }, true},
		{"no samples", func(tu *trackroi.Tuning) { tu.MinSamples = 0 }, true},
		{"negative buckets", func(tu *trackroi.Tuning) { tu.MinAddrBuckets = -1 }, true},
	}
	for _, test := range tests {
		cfg := defaultConfig()
		tuning := cfg.tuning()
		test.modify(&tuning)
		err := validateTuning(&tuning)
		if test.fails != (err != nil) {
			t.Errorf("%s: unexpected result %v", test.name, err)
		}
	}
}

func TestDefaultConfigTuning(t *testing.T) {
	cfg := defaultConfig()
	if got, want := cfg.tuning(), trackroi.DefaultTuning(); got != want {
		t.Fatalf("default tuning %+v, want %+v", got, want)
	}
	cfg.NoRange = true
	if cfg.tuning().UseRange {
		t.Fatal("norange ignored")
	}
}

func TestSelectNetwork(t *testing.T) {
	defer func() { activeNet = &netparams.MainNetParams }()

	cfg := defaultConfig()
	if err := selectNetwork(&cfg); err != nil || activeNet != &netparams.MainNetParams {
		t.Fatalf("mainnet not selected: %v", err)
	}
	cfg.RegTest = true
	if err := selectNetwork(&cfg); err != nil || activeNet != &netparams.RegTestParams {
		t.Fatalf("regtest not selected: %v", err)
	}
	if got := networkDir("data", activeNet.Params); got != filepath.Join("data", "regtest") {
		t.Fatalf("unexpected network dir %s", got)
	}
	cfg.TestNet = true
	if err := selectNetwork(&cfg); err == nil {
		t.Fatal("expected error selecting two networks")
	}
}

func TestNormalizeChainServer(t *testing.T) {
	cfg := defaultConfig()
	cfg.DisableClientTLS = true
	if err := normalizeChainServer(&cfg); err != nil {
		t.Fatalf("normalizeChainServer: %v", err)
	}
	if cfg.RPCConnect != "localhost:"+activeNet.RPCClientPort {
		t.Fatalf("unexpected default rpcconnect %s", cfg.RPCConnect)
	}

	cfg = defaultConfig()
	cfg.DisableClientTLS = true
	cfg.RPCConnect = "10.0.0.1"
	if err := normalizeChainServer(&cfg); err == nil {
		t.Fatal("expected error for noclienttls on a remote node")
	}
}
