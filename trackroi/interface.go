// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"errors"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// Block identifies a block in the main chain along with its timestamp.
type Block struct {
	Hash   chainhash.Hash
	Height int32
	Time   time.Time
}

// TxSource looks up confirmed transactions and the blocks that contain
// them.  Implementations may block on I/O and are never called while the
// engine holds its sample lock.
type TxSource interface {
	// FetchTransaction returns the transaction with the given hash and
	// the hash of the block that contains it.
	FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error)

	// FetchBlock returns the main chain block with the given hash.
	FetchBlock(hash *chainhash.Hash) (*Block, error)
}

// RewardSchedule reports the height keyed reward amounts of the masternode
// subsystem.
type RewardSchedule interface {
	BlockValue(height int32) btcutil.Amount
	MasternodePayment(height int32) btcutil.Amount
	MasternodeCollateral(height int32) btcutil.Amount
}

// MasternodeCounter reports the number of enabled masternodes.
type MasternodeCounter interface {
	CountEnabled() (int, error)
}

// ChainParams describes the chain parameters the engine depends on.
type ChainParams interface {
	TargetSpacing() int64
	MinStakeDepth(height int32) int32
	Magic() [4]byte
}

// NodeState reports the boolean preconditions for recording samples.
type NodeState interface {
	WalletLoaded() bool
	TxIndexEnabled() bool
	IsSynced() bool
}

// AddressDecoder turns an output script into a display address.
type AddressDecoder interface {
	DecodeAddress(pkScript []byte) (string, error)
}

// ScriptDecoder is an AddressDecoder for standard scripts of a network.
type ScriptDecoder struct {
	Params *chaincfg.Params
}

// DecodeAddress returns the first address paid by pkScript.  Pay-to-pubkey
// scripts decode to the pubkey hash address of the key.
func (d ScriptDecoder) DecodeAddress(pkScript []byte) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, d.Params)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", errors.New("script pays no address")
	}
	return addrs[0].EncodeAddress(), nil
}

// IsCoinStakeTx determines whether or not a transaction is a coinstake.  A
// coinstake spends a real outpoint and its first output is empty.
func IsCoinStakeTx(tx *wire.MsgTx) bool {
	if len(tx.TxIn) == 0 || len(tx.TxOut) < 2 {
		return false
	}
	prevOut := &tx.TxIn[0].PreviousOutPoint
	if prevOut.Index == math.MaxUint32 && prevOut.Hash == (chainhash.Hash{}) {
		return false
	}
	first := tx.TxOut[0]
	return first.Value == 0 && len(first.PkScript) == 0
}
