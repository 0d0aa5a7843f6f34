// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kyanite/roitracker/chain"
	"github.com/kyanite/roitracker/trackroi"
)

var errNoChainServer = errors.New("chain server not connected")

// reconnectDelay is the pause between failed chain server connections.
var reconnectDelay = 5 * time.Second

// chainSource forwards lookups to the currently connected chain client.
// The client is replaced whenever the connection to the full node is
// reestablished.
type chainSource struct {
	mu     sync.Mutex
	client chain.Interface
}

var (
	_ trackroi.TxSource          = (*chainSource)(nil)
	_ trackroi.MasternodeCounter = (*chainSource)(nil)
)

func (s *chainSource) set(c chain.Interface) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
}

func (s *chainSource) get() (chain.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, errNoChainServer
	}
	return s.client, nil
}

func (s *chainSource) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error) {
	c, err := s.get()
	if err != nil {
		return nil, nil, err
	}
	return c.FetchTransaction(hash)
}

func (s *chainSource) FetchBlock(hash *chainhash.Hash) (*trackroi.Block, error) {
	c, err := s.get()
	if err != nil {
		return nil, err
	}
	return c.FetchBlock(hash)
}

func (s *chainSource) CountEnabled() (int, error) {
	c, err := s.get()
	if err != nil {
		return 0, err
	}
	return c.CountEnabled()
}

// nodeState implements trackroi.NodeState.  The sync flag is refreshed once
// per connected block so recording never waits on the full node.
type nodeState struct {
	walletLoaded bool
	txIndex      bool
	synced       int32
}

func (n *nodeState) WalletLoaded() bool   { return n.walletLoaded }
func (n *nodeState) TxIndexEnabled() bool { return n.txIndex }
func (n *nodeState) IsSynced() bool       { return atomic.LoadInt32(&n.synced) != 0 }

func (n *nodeState) setSynced(synced bool) {
	var v int32
	if synced {
		v = 1
	}
	if old := atomic.SwapInt32(&n.synced, v); old != v {
		log.Infof("Full node synced: %v", synced)
	}
}

// blockIndexer is the part of the transaction index fed by connected
// blocks.
type blockIndexer interface {
	ConnectBlock(block *trackroi.Block, txs []*wire.MsgTx) error
	DisconnectBlock(hash *chainhash.Hash) error
}

// blockRecorder receives every transaction of a connected block.
type blockRecorder interface {
	RecordIfEligible(tx *wire.MsgTx, block *trackroi.Block)
}

// tracker feeds connected blocks from the chain server into the index and
// the ROI engine.
type tracker struct {
	engine  blockRecorder
	index   blockIndexer // nil when the local index is disabled
	state   *nodeState
	quit    chan struct{}
	wg      sync.WaitGroup
	stopMtx sync.Mutex
	client  chain.Interface // guarded by stopMtx
}

func newTracker(engine blockRecorder, index blockIndexer, state *nodeState) *tracker {
	return &tracker{
		engine: engine,
		index:  index,
		state:  state,
		quit:   make(chan struct{}),
	}
}

// blockConnector is the part of a chain client a tracker reads blocks from.
type blockConnector interface {
	BlockTransactions(*chainhash.Hash) ([]*wire.MsgTx, error)
	IsSynced() (bool, error)
}

// handleNotifications processes chain notifications until the channel is
// closed.
func (t *tracker) handleNotifications(c blockConnector, ntfns <-chan interface{}) {
	for n := range ntfns {
		switch n := n.(type) {
		case chain.ClientConnected:
			log.Infof("Connected to chain server")

		case chain.BlockConnected:
			block := trackroi.Block(n)
			t.connectBlock(c, &block)

		case chain.BlockDisconnected:
			if t.index == nil {
				continue
			}
			if err := t.index.DisconnectBlock(&n.Hash); err != nil {
				log.Errorf("Unable to remove block %v (height %d) "+
					"from the index: %v", n.Hash, n.Height, err)
			}
		}
	}
}

func (t *tracker) connectBlock(c blockConnector, block *trackroi.Block) {
	txs, err := c.BlockTransactions(&block.Hash)
	if err != nil {
		log.Errorf("Unable to fetch block %v (height %d): %v", block.Hash,
			block.Height, err)
		return
	}
	if t.index != nil {
		if err := t.index.ConnectBlock(block, txs); err != nil {
			log.Errorf("Unable to index block %v (height %d): %v",
				block.Hash, block.Height, err)
		}
	}

	synced, err := c.IsSynced()
	if err != nil {
		log.Warnf("Unable to query sync state: %v", err)
	} else {
		t.state.setSynced(synced)
	}

	for _, tx := range txs {
		t.engine.RecordIfEligible(tx, block)
	}
}

// flushLoop writes the sample store every interval until the tracker is
// stopped.
func (t *tracker) flushLoop(interval time.Duration, flush func() error) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := flush(); err != nil {
				log.Errorf("Unable to write ROI cache: %v", err)
			}
		case <-t.quit:
			return
		}
	}
}

// startFlushLoop runs flush every interval in the background.  A zero
// interval disables the loop.
func (t *tracker) startFlushLoop(interval time.Duration, flush func() error) {
	if interval <= 0 {
		return
	}
	t.wg.Add(1)
	go t.flushLoop(interval, flush)
}

// setClient records the chain client to stop on shutdown.  It returns false
// once the tracker is shutting down.
func (t *tracker) setClient(c chain.Interface) bool {
	t.stopMtx.Lock()
	defer t.stopMtx.Unlock()
	if t.shuttingDown() {
		return false
	}
	t.client = c
	return true
}

// startChainLoop keeps a chain client connected through connect and feeds
// its notifications to the tracker until Stop is called.  The source follows
// the connected client.
func (t *tracker) startChainLoop(connect func() (chain.Interface, error), source *chainSource) {
	t.wg.Add(1)
	go t.chainLoop(connect, source)
}

func (t *tracker) chainLoop(connect func() (chain.Interface, error), source *chainSource) {
	defer t.wg.Done()

	for !t.shuttingDown() {
		c, err := connect()
		if err != nil {
			log.Errorf("Unable to open connection to chain server: %v", err)
			select {
			case <-time.After(reconnectDelay):
				continue
			case <-t.quit:
				return
			}
		}
		if !t.setClient(c) {
			c.Stop()
			c.WaitForShutdown()
			return
		}
		source.set(c)

		t.handleNotifications(c, c.Notifications())
		c.WaitForShutdown()

		source.set(nil)
		t.setClient(nil)
	}
}

// Stop signals the background goroutines to exit, disconnects the chain
// client and waits for everything to finish.
func (t *tracker) Stop() {
	t.stopMtx.Lock()
	select {
	case <-t.quit:
	default:
		close(t.quit)
		if t.client != nil {
			t.client.Stop()
		}
	}
	t.stopMtx.Unlock()
	t.wg.Wait()
}

// shuttingDown returns whether Stop was called.
func (t *tracker) shuttingDown() bool {
	select {
	case <-t.quit:
		return true
	default:
		return false
	}
}
