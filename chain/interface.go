// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kyanite/roitracker/trackroi"
)

// BackEnds returns a list of the available back ends.
func BackEnds() []string {
	return []string{
		"rpc",
	}
}

// Interface allows more than one backing full node to feed the tracker.
// Besides the block notifications it serves the transaction lookups and
// masternode queries of the ROI engine.
type Interface interface {
	trackroi.TxSource
	trackroi.MasternodeCounter

	Start() error
	Stop()
	WaitForShutdown()
	GetBestBlock() (*chainhash.Hash, int32, error)
	BlockTransactions(*chainhash.Hash) ([]*wire.MsgTx, error)
	IsSynced() (bool, error)
	Notifications() <-chan interface{}
	BackEnd() string
}

// Notification types.  These are defined here and processed from reading
// a notificationChan to avoid handling these notifications directly in
// rpcclient callbacks, which isn't very Go-like and doesn't allow
// blocking client calls.
type (
	// ClientConnected is a notification for when a client connection is
	// opened or reestablished to the chain server.
	ClientConnected struct{}

	// BlockConnected is a notification for a newly-attached block to the
	// best chain.
	BlockConnected trackroi.Block

	// BlockDisconnected is a notification that the block described by the
	// Block was reorganized out of the best chain.
	BlockDisconnected trackroi.Block
)
