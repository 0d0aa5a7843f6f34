// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// RewardEra describes a span of blocks over which the block value, the
// masternode payment and the masternode collateral stay constant.  An era
// begins at Height and lasts until the next era's Height.
type RewardEra struct {
	Height            int32
	BlockValue        btcutil.Amount
	MasternodePayment btcutil.Amount
	Collateral        btcutil.Amount
}

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params
	RPCClientPort string
	HTTPPort      string

	// StakeMinDepth is the number of confirmations an output needs before
	// it may stake.  From StakeMinDepthV2Height on, StakeMinDepthV2 applies.
	StakeMinDepth         int32
	StakeMinDepthV2       int32
	StakeMinDepthV2Height int32

	// RewardEras must be sorted by ascending Height and start at zero.
	RewardEras []RewardEra
}

// TargetSpacing returns the target block spacing in whole seconds.
func (p *Params) TargetSpacing() int64 {
	return int64(p.TargetTimePerBlock / time.Second)
}

// MinStakeDepth returns the minimum stake depth in effect at height.
func (p *Params) MinStakeDepth(height int32) int32 {
	if p.StakeMinDepthV2Height > 0 && height >= p.StakeMinDepthV2Height {
		return p.StakeMinDepthV2
	}
	return p.StakeMinDepth
}

// Magic returns the four network magic bytes in wire order.
func (p *Params) Magic() [4]byte {
	n := uint32(p.Net)
	return [4]byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

// rewardEra returns the era that contains height.
func (p *Params) rewardEra(height int32) RewardEra {
	var era RewardEra
	for _, e := range p.RewardEras {
		if e.Height > height {
			break
		}
		era = e
	}
	return era
}

// BlockValue returns the total block reward at height.
func (p *Params) BlockValue(height int32) btcutil.Amount {
	return p.rewardEra(height).BlockValue
}

// MasternodePayment returns the masternode share of the block reward at
// height.
func (p *Params) MasternodePayment(height int32) btcutil.Amount {
	return p.rewardEra(height).MasternodePayment
}

// MasternodeCollateral returns the collateral a masternode must lock at
// height.
func (p *Params) MasternodeCollateral(height int32) btcutil.Amount {
	return p.rewardEra(height).Collateral
}

const coin = btcutil.SatoshiPerBitcoin

var mainNetChainParams = chaincfg.Params{
	Name:               "mainnet",
	Net:                wire.BitcoinNet(0xf9a9f6a6),
	DefaultPort:        "7757",
	TargetTimePerBlock: time.Minute,
	CoinbaseMaturity:   100,

	PubKeyHashAddrID: 46, // starts with K
	ScriptHashAddrID: 16, // starts with 7
	PrivateKeyID:     43,
	HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
	HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
	HDCoinType:       834,
}

var testNetChainParams = chaincfg.Params{
	Name:               "testnet",
	Net:                wire.BitcoinNet(0x9f6f9a6a),
	DefaultPort:        "8757",
	TargetTimePerBlock: time.Minute,
	CoinbaseMaturity:   100,

	PubKeyHashAddrID: 107, // starts with k
	ScriptHashAddrID: 19,
	PrivateKeyID:     239,
	HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
	HDCoinType:       1,
}

var regTestChainParams = chaincfg.Params{
	Name:               "regtest",
	Net:                wire.BitcoinNet(0x9d6dd9d6),
	DefaultPort:        "9757",
	TargetTimePerBlock: time.Minute,
	CoinbaseMaturity:   100,

	PubKeyHashAddrID: 140, // starts with y
	ScriptHashAddrID: 19,
	PrivateKeyID:     239,
	HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
	HDCoinType:       1,
}

// MainNetParams contains parameters specific to running roitracker against
// the main network.
var MainNetParams = Params{
	Params:                &mainNetChainParams,
	RPCClientPort:         "7758",
	HTTPPort:              "7760",
	StakeMinDepth:         100,
	StakeMinDepthV2:       600,
	StakeMinDepthV2Height: 5001,
	RewardEras: []RewardEra{
		{Height: 0, BlockValue: 250 * coin, MasternodePayment: 0, Collateral: 10000 * coin},
		{Height: 1001, BlockValue: 650 * coin, MasternodePayment: 520 * coin, Collateral: 10000 * coin},
		{Height: 1475000, BlockValue: 400 * coin, MasternodePayment: 320 * coin, Collateral: 10000 * coin},
	},
}

// TestNetParams contains parameters specific to the test network.
var TestNetParams = Params{
	Params:                &testNetChainParams,
	RPCClientPort:         "8758",
	HTTPPort:              "8760",
	StakeMinDepth:         100,
	StakeMinDepthV2:       10,
	StakeMinDepthV2Height: 5001,
	RewardEras: []RewardEra{
		{Height: 0, BlockValue: 250 * coin, MasternodePayment: 0, Collateral: 10000 * coin},
		{Height: 1001, BlockValue: 650 * coin, MasternodePayment: 520 * coin, Collateral: 10000 * coin},
		{Height: 1234440, BlockValue: 400 * coin, MasternodePayment: 320 * coin, Collateral: 10000 * coin},
	},
}

// RegTestParams contains parameters specific to the regression test network.
var RegTestParams = Params{
	Params:        &regTestChainParams,
	RPCClientPort: "9758",
	HTTPPort:      "9760",
	StakeMinDepth: 2,
	RewardEras: []RewardEra{
		{Height: 0, BlockValue: 250 * coin, MasternodePayment: 0, Collateral: 10000 * coin},
		{Height: 251, BlockValue: 650 * coin, MasternodePayment: 520 * coin, Collateral: 10000 * coin},
	},
}

func mustRegister(p *chaincfg.Params) {
	if err := chaincfg.Register(p); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	mustRegister(&mainNetChainParams)
	mustRegister(&testNetChainParams)
	mustRegister(&regTestChainParams)
}
