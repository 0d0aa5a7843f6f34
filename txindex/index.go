// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txindex maintains a local index of confirmed transactions and the
// blocks containing them.  It serves the predecessor lookups of the ROI
// engine without a round trip to the full node for every hop.
package txindex

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru"
	"github.com/kyanite/roitracker/kvdb"
	_ "github.com/kyanite/roitracker/kvdb/bdb" // bbolt backend
	"github.com/kyanite/roitracker/metrics"
	"github.com/kyanite/roitracker/trackroi"
)

// DefaultCacheSize is the number of transactions and blocks kept in memory.
const DefaultCacheSize = 4096

const dbType = "bdb"

var (
	metricLookups   = metrics.LazyLoadCounter("txindex_lookups", "Transaction and block lookups served by the index")
	metricFallbacks = metrics.LazyLoadCounter("txindex_fallbacks", "Lookups resolved by the fallback source")
	metricConnected = metrics.LazyLoadCounter("txindex_blocks_connected", "Blocks added to the index")
)

// txEntry is a cached transaction record.
type txEntry struct {
	tx    *wire.MsgTx
	block chainhash.Hash
}

// lruCache extends golang-lru with a read-through helper.
type lruCache struct {
	*lru.Cache
}

func newLRU(size int) (*lruCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{c}, nil
}

// getOrLoad returns the cached value for key, calling load and caching the
// result on a miss.
func (c *lruCache) getOrLoad(key interface{}, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.Add(key, v)
	return v, nil
}

// Index is a persistent transaction index.  It implements trackroi.TxSource
// and is safe for concurrent use.
type Index struct {
	db       kvdb.DB
	txs      *lruCache
	blocks   *lruCache
	fallback trackroi.TxSource
}

var _ trackroi.TxSource = (*Index)(nil)

// Open opens the index database at dbPath, creating it if needed.  Lookups
// that miss the index are forwarded to fallback, when not nil, and the
// results are added to the index.
func Open(dbPath string, cacheSize int, fallback trackroi.TxSource) (*Index, error) {
	db, err := kvdb.Open(dbType, dbPath)
	if err == kvdb.ErrDbDoesNotExist {
		log.Infof("Creating transaction index %s", dbPath)
		db, err = kvdb.Create(dbType, dbPath)
	}
	if err != nil {
		str := fmt.Sprintf("failed to open index %s", dbPath)
		return nil, storeError(ErrDatabase, str, err)
	}

	if err := kvdb.Update(db, createBuckets); err != nil {
		db.Close()
		return nil, err
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	txs, err := newLRU(cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	blocks, err := newLRU(cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &Index{
		db:       db,
		txs:      txs,
		blocks:   blocks,
		fallback: fallback,
	}
	if hash, height, ok := idx.Tip(); ok {
		log.Infof("Transaction index tip %v (height %d)", hash, height)
	}
	return idx, nil
}

// Drop empties the index database at dbPath.  The index is rebuilt from
// newly connected blocks and fallback lookups the next time it is opened.
func Drop(dbPath string) error {
	db, err := kvdb.Open(dbType, dbPath)
	if err != nil {
		str := fmt.Sprintf("failed to open index %s", dbPath)
		return storeError(ErrDatabase, str, err)
	}
	defer db.Close()

	return kvdb.Update(db, func(tx kvdb.ReadWriteTx) error {
		if err := dropBuckets(tx); err != nil {
			return err
		}
		return createBuckets(tx)
	})
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Tip returns the most recently connected block.
func (idx *Index) Tip() (*chainhash.Hash, int32, bool) {
	var (
		hash   *chainhash.Hash
		height int32
		ok     bool
	)
	err := kvdb.View(idx.db, func(tx kvdb.ReadTx) error {
		hash, height, ok = fetchTip(tx.ReadBucket(bucketMeta))
		return nil
	})
	if err != nil {
		log.Errorf("Unable to read index tip: %v", err)
		return nil, 0, false
	}
	return hash, height, ok
}

// ConnectBlock indexes every transaction of block and makes it the tip.
func (idx *Index) ConnectBlock(block *trackroi.Block, txs []*wire.MsgTx) error {
	txHashes := make([]chainhash.Hash, 0, len(txs))
	err := kvdb.Update(idx.db, func(dbtx kvdb.ReadWriteTx) error {
		ns := dbtx.ReadWriteBucket(bucketTxs)
		for _, tx := range txs {
			txHash, err := putTxRecord(ns, tx, &block.Hash)
			if err != nil {
				return err
			}
			txHashes = append(txHashes, *txHash)
		}
		err := putBlockRecord(dbtx.ReadWriteBucket(bucketBlocks), block,
			txHashes)
		if err != nil {
			return err
		}
		return putTip(dbtx.ReadWriteBucket(bucketMeta), block)
	})
	if err != nil {
		return err
	}

	// Entries for these hashes may have been cached from the fallback
	// source under a different block after a reorganization.
	for i := range txHashes {
		idx.txs.Remove(txHashes[i])
	}
	idx.blocks.Remove(block.Hash)

	log.Debugf("Indexed block %v (height %d, %d transactions)", block.Hash,
		block.Height, len(txs))
	metricConnected().Add(1)
	return nil
}

// DisconnectBlock removes a block and the transactions indexed with it.
func (idx *Index) DisconnectBlock(hash *chainhash.Hash) error {
	var txHashes []chainhash.Hash
	err := kvdb.Update(idx.db, func(dbtx kvdb.ReadWriteTx) error {
		blocks := dbtx.ReadWriteBucket(bucketBlocks)
		v := blocks.Get(hash[:])
		if v == nil {
			return nil
		}
		var err error
		_, txHashes, err = readBlockRecord(hash, v)
		if err != nil {
			return err
		}

		txs := dbtx.ReadWriteBucket(bucketTxs)
		for i := range txHashes {
			if err := txs.Delete(txHashes[i][:]); err != nil {
				return storeError(ErrDatabase, "delete failed", err)
			}
		}
		if err := blocks.Delete(hash[:]); err != nil {
			return storeError(ErrDatabase, "delete failed", err)
		}

		meta := dbtx.ReadWriteBucket(bucketMeta)
		if tip, _, ok := fetchTip(meta); ok && *tip == *hash {
			if err := meta.Delete(keyTip); err != nil {
				return storeError(ErrDatabase, "delete failed", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range txHashes {
		idx.txs.Remove(txHashes[i])
	}
	idx.blocks.Remove(*hash)
	log.Debugf("Removed block %v (%d transactions)", hash, len(txHashes))
	return nil
}

// FetchTransaction returns the transaction with the given hash and the
// hash of the block containing it.
func (idx *Index) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error) {
	metricLookups().Add(1)
	v, err := idx.txs.getOrLoad(*hash, func() (interface{}, error) {
		return idx.loadTx(hash)
	})
	if err != nil {
		return nil, nil, err
	}
	e := v.(*txEntry)
	block := e.block
	return e.tx, &block, nil
}

func (idx *Index) loadTx(hash *chainhash.Hash) (*txEntry, error) {
	var e *txEntry
	err := kvdb.View(idx.db, func(dbtx kvdb.ReadTx) error {
		v := dbtx.ReadBucket(bucketTxs).Get(hash[:])
		if v == nil {
			return nil
		}
		var err error
		e, err = readTxRecord(hash, v)
		return err
	})
	if err != nil || e != nil {
		return e, err
	}

	if idx.fallback == nil {
		str := fmt.Sprintf("transaction %v not found", hash)
		return nil, storeError(ErrTxNotFound, str, nil)
	}
	tx, blockHash, err := idx.fallback.FetchTransaction(hash)
	if err != nil {
		str := fmt.Sprintf("transaction %v not found", hash)
		return nil, storeError(ErrTxNotFound, str, err)
	}
	metricFallbacks().Add(1)

	// The containing block is needed for every predecessor, so learn it
	// alongside the transaction.
	if _, err := idx.FetchBlock(blockHash); err != nil {
		return nil, err
	}
	err = kvdb.Update(idx.db, func(dbtx kvdb.ReadWriteTx) error {
		_, err := putTxRecord(dbtx.ReadWriteBucket(bucketTxs), tx, blockHash)
		return err
	})
	if err != nil {
		log.Warnf("Unable to index transaction %v: %v", hash, err)
	}
	return &txEntry{tx: tx, block: *blockHash}, nil
}

// FetchBlock returns the block with the given hash.
func (idx *Index) FetchBlock(hash *chainhash.Hash) (*trackroi.Block, error) {
	metricLookups().Add(1)
	v, err := idx.blocks.getOrLoad(*hash, func() (interface{}, error) {
		return idx.loadBlock(hash)
	})
	if err != nil {
		return nil, err
	}
	b := *v.(*trackroi.Block)
	return &b, nil
}

func (idx *Index) loadBlock(hash *chainhash.Hash) (*trackroi.Block, error) {
	var block *trackroi.Block
	err := kvdb.View(idx.db, func(dbtx kvdb.ReadTx) error {
		v := dbtx.ReadBucket(bucketBlocks).Get(hash[:])
		if v == nil {
			return nil
		}
		var err error
		block, _, err = readBlockRecord(hash, v)
		return err
	})
	if err != nil || block != nil {
		return block, err
	}

	if idx.fallback == nil {
		str := fmt.Sprintf("block %v not found", hash)
		return nil, storeError(ErrBlockNotFound, str, nil)
	}
	block, err = idx.fallback.FetchBlock(hash)
	if err != nil {
		str := fmt.Sprintf("block %v not found", hash)
		return nil, storeError(ErrBlockNotFound, str, err)
	}
	metricFallbacks().Add(1)

	err = kvdb.Update(idx.db, func(dbtx kvdb.ReadWriteTx) error {
		return putBlockRecord(dbtx.ReadWriteBucket(bucketBlocks), block, nil)
	})
	if err != nil {
		log.Warnf("Unable to index block %v: %v", hash, err)
	}
	return block, nil
}
