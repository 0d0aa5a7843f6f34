// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	gojson "github.com/goccy/go-json"
	"github.com/kyanite/roitracker/trackroi"
)

// masternodeSyncFinished is the sync stage reported by mnsync once the
// masternode lists are complete.
const masternodeSyncFinished = 999

// RPCClient represents a persistent client connection to a PoS full node
// for information regarding the current best block chain.
type RPCClient struct {
	*rpcclient.Client
	connConfig        *rpcclient.ConnConfig // Work around unexported field
	chainParams       *chaincfg.Params
	reconnectAttempts int

	enqueueNotification chan interface{}
	dequeueNotification chan interface{}
	currentBlock        chan *trackroi.Block

	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	quitMtx sync.Mutex
}

var _ Interface = (*RPCClient)(nil)

// NewRPCClient creates a client connection to the server described by the
// connect string.  If disableTLS is false, the remote RPC certificate must be
// provided in the certs slice.  The connection is not established immediately,
// but must be done using the Start method.  If the remote server does not
// operate on the same network as described by the passed chain parameters,
// the connection will be disconnected.
func NewRPCClient(chainParams *chaincfg.Params, connect, user, pass string, certs []byte,
	disableTLS bool, reconnectAttempts int) (*RPCClient, error) {

	if reconnectAttempts < 0 {
		return nil, errors.New("reconnectAttempts must be positive")
	}

	client := &RPCClient{
		connConfig: &rpcclient.ConnConfig{
			Host:                 connect,
			Endpoint:             "ws",
			User:                 user,
			Pass:                 pass,
			Certificates:         certs,
			DisableAutoReconnect: false,
			DisableConnectOnNew:  true,
			DisableTLS:           disableTLS,
		},
		chainParams:         chainParams,
		reconnectAttempts:   reconnectAttempts,
		enqueueNotification: make(chan interface{}),
		dequeueNotification: make(chan interface{}),
		currentBlock:        make(chan *trackroi.Block),
		quit:                make(chan struct{}),
	}
	ntfnCallbacks := &rpcclient.NotificationHandlers{
		OnClientConnected:   client.onClientConnect,
		OnBlockConnected:    client.onBlockConnected,
		OnBlockDisconnected: client.onBlockDisconnected,
	}
	rpcClient, err := rpcclient.New(client.connConfig, ntfnCallbacks)
	if err != nil {
		return nil, err
	}
	client.Client = rpcClient
	return client, nil
}

// BackEnd returns the name of the driver.
func (c *RPCClient) BackEnd() string {
	return "rpc"
}

// Start attempts to establish a client connection with the remote server.
// If successful, handler goroutines are started to process notifications
// sent by the server.  After a limited number of connection attempts, this
// function gives up, and therefore will not block forever waiting for the
// connection to be established to a server that may not exist.
func (c *RPCClient) Start() error {
	err := c.Connect(c.reconnectAttempts)
	if err != nil {
		return err
	}

	// Verify that the server is running on the expected network.
	net, err := c.GetCurrentNet()
	if err != nil {
		c.Disconnect()
		return err
	}
	if net != c.chainParams.Net {
		c.Disconnect()
		return errors.New("mismatched networks")
	}

	if err := c.NotifyBlocks(); err != nil {
		c.Disconnect()
		return err
	}

	c.quitMtx.Lock()
	c.started = true
	c.quitMtx.Unlock()

	c.wg.Add(1)
	go c.handler()
	return nil
}

// Stop disconnects the client and signals the shutdown of all goroutines
// started by Start.
func (c *RPCClient) Stop() {
	c.quitMtx.Lock()
	select {
	case <-c.quit:
	default:
		close(c.quit)
		c.Client.Shutdown()

		if !c.started {
			close(c.dequeueNotification)
		}
	}
	c.quitMtx.Unlock()
}

// WaitForShutdown blocks until both the client has finished disconnecting
// and all handlers have exited.
func (c *RPCClient) WaitForShutdown() {
	c.Client.WaitForShutdown()
	c.wg.Wait()
}

// Notifications returns a channel of parsed notifications sent by the remote
// full node.  This channel must be continually read or the process may
// abort for running out memory, as unread notifications are queued for
// later reads.
func (c *RPCClient) Notifications() <-chan interface{} {
	return c.dequeueNotification
}

// CurrentBlock returns the most recent block notified by the client, or an
// error if the client has been shut down.
func (c *RPCClient) CurrentBlock() (*trackroi.Block, error) {
	select {
	case b := <-c.currentBlock:
		return b, nil
	case <-c.quit:
		return nil, errors.New("disconnected")
	}
}

// FetchTransaction returns a confirmed transaction and the hash of the block
// containing it.  The node must run with a transaction index.
func (c *RPCClient) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error) {
	res, err := c.GetRawTransactionVerbose(hash)
	if err != nil {
		return nil, nil, err
	}
	return parseTxResult(res)
}

// FetchBlock returns the hash, height and timestamp of a block.
func (c *RPCClient) FetchBlock(hash *chainhash.Hash) (*trackroi.Block, error) {
	res, err := c.GetBlockHeaderVerbose(hash)
	if err != nil {
		return nil, err
	}
	return parseHeaderResult(res)
}

// BlockTransactions returns every transaction of a block.  Transactions are
// requested one by one since PoS block encodings extend the header and
// trail the transactions with a block signature.
func (c *RPCClient) BlockTransactions(hash *chainhash.Hash) ([]*wire.MsgTx, error) {
	res, err := c.GetBlockVerbose(hash)
	if err != nil {
		return nil, err
	}
	txs := make([]*wire.MsgTx, 0, len(res.Tx))
	for _, id := range res.Tx {
		txHash, err := chainhash.NewHashFromStr(id)
		if err != nil {
			return nil, err
		}
		tx, err := c.GetRawTransaction(txHash)
		if err != nil {
			return nil, fmt.Errorf("block %v: transaction %v: %v", hash,
				txHash, err)
		}
		txs = append(txs, tx.MsgTx())
	}
	return txs, nil
}

// CountEnabled returns the number of enabled masternodes known to the node.
func (c *RPCClient) CountEnabled() (int, error) {
	raw, err := c.RawRequest("getmasternodecount", nil)
	if err != nil {
		return 0, err
	}
	return parseMasternodeCount(raw)
}

// IsSynced reports whether the node finished syncing both the block chain
// and the masternode lists.  Nodes without masternode sync status are
// considered synced once their block count reaches the best header.
func (c *RPCClient) IsSynced() (bool, error) {
	params := []json.RawMessage{json.RawMessage(`"status"`)}
	raw, err := c.RawRequest("mnsync", params)
	if err == nil {
		return parseSyncStatus(raw)
	}
	log.Debugf("mnsync unavailable, falling back to chain info: %v", err)

	info, err := c.GetBlockChainInfo()
	if err != nil {
		return false, err
	}
	return info.Headers > 0 && info.Blocks >= info.Headers, nil
}

func parseTxResult(res *btcjson.TxRawResult) (*wire.MsgTx, *chainhash.Hash, error) {
	if res.BlockHash == "" {
		return nil, nil, fmt.Errorf("transaction %s is unconfirmed", res.Txid)
	}
	blockHash, err := chainhash.NewHashFromStr(res.BlockHash)
	if err != nil {
		return nil, nil, err
	}
	serialized, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, nil, err
	}
	tx := new(wire.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, nil, err
	}
	return tx, blockHash, nil
}

func parseHeaderResult(res *btcjson.GetBlockHeaderVerboseResult) (*trackroi.Block, error) {
	hash, err := chainhash.NewHashFromStr(res.Hash)
	if err != nil {
		return nil, err
	}
	return &trackroi.Block{
		Hash:   *hash,
		Height: res.Height,
		Time:   time.Unix(res.Time, 0),
	}, nil
}

// parseMasternodeCount reads the enabled count from either the object
// reply of getmasternodecount or a bare number.
func parseMasternodeCount(raw []byte) (int, error) {
	var n int
	if err := gojson.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var res struct {
		Enabled *int `json:"enabled"`
	}
	if err := gojson.Unmarshal(raw, &res); err != nil {
		return 0, err
	}
	if res.Enabled == nil {
		return 0, errors.New("getmasternodecount: missing enabled count")
	}
	return *res.Enabled, nil
}

func parseSyncStatus(raw []byte) (bool, error) {
	var res struct {
		IsBlockchainSynced        bool `json:"IsBlockchainSynced"`
		RequestedMasternodeAssets *int `json:"RequestedMasternodeAssets"`
	}
	if err := gojson.Unmarshal(raw, &res); err != nil {
		return false, err
	}
	if res.RequestedMasternodeAssets != nil {
		return *res.RequestedMasternodeAssets == masternodeSyncFinished, nil
	}
	return res.IsBlockchainSynced, nil
}

func (c *RPCClient) onClientConnect() {
	select {
	case c.enqueueNotification <- ClientConnected{}:
	case <-c.quit:
	}
}

func (c *RPCClient) onBlockConnected(hash *chainhash.Hash, height int32, t time.Time) {
	select {
	case c.enqueueNotification <- BlockConnected{
		Hash:   *hash,
		Height: height,
		Time:   t,
	}:
	case <-c.quit:
	}
}

func (c *RPCClient) onBlockDisconnected(hash *chainhash.Hash, height int32, t time.Time) {
	select {
	case c.enqueueNotification <- BlockDisconnected{
		Hash:   *hash,
		Height: height,
		Time:   t,
	}:
	case <-c.quit:
	}
}

// handler maintains a queue of notifications and the current state (best
// block) of the chain.
func (c *RPCClient) handler() {
	hash, height, err := c.GetBestBlock()
	if err != nil {
		log.Errorf("Failed to receive best block from chain server: %v", err)
		c.Stop()
		c.wg.Done()
		return
	}

	best := &trackroi.Block{Hash: *hash, Height: height}

	var notifications []interface{}
	enqueue := c.enqueueNotification
	var dequeue chan interface{}
	var next interface{}
out:
	for {
		select {
		case n, ok := <-enqueue:
			if !ok {
				// If no notifications are queued for handling,
				// the queue is finished.
				if len(notifications) == 0 {
					break out
				}
				// nil channel so no more reads can occur.
				enqueue = nil
				continue
			}
			if len(notifications) == 0 {
				next = n
				dequeue = c.dequeueNotification
			}
			notifications = append(notifications, n)

		case dequeue <- next:
			if n, ok := next.(BlockConnected); ok {
				b := trackroi.Block(n)
				best = &b
			}

			notifications[0] = nil
			notifications = notifications[1:]
			if len(notifications) != 0 {
				next = notifications[0]
			} else {
				// If no more notifications can be enqueued, the
				// queue is finished.
				if enqueue == nil {
					break out
				}
				dequeue = nil
			}

		case c.currentBlock <- best:

		case <-c.quit:
			break out
		}
	}

	c.Stop()
	close(c.dequeueNotification)
	c.wg.Done()
}
