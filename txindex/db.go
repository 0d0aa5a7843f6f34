// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kyanite/roitracker/kvdb"
	"github.com/kyanite/roitracker/trackroi"
)

// Naming
//
// Transactions are keyed by their hash and record the containing block
// hash followed by the serialized transaction:
//
//   [0:32]  Block hash (32 bytes)
//   [32:]   Serialized transaction
//
// Blocks are keyed by their hash:
//
//   [0:4]   Height (4 bytes)
//   [4:12]  Unix time (8 bytes)
//   [12:16] Number of indexed transactions (4 bytes)
//   [16:]   Transaction hashes (32 bytes each)
//
// Blocks learned from the fallback source carry no transaction hashes.
//
// The meta bucket holds the most recently connected block under the tip
// key as block hash (32 bytes) followed by height (4 bytes).

var byteOrder = binary.BigEndian

var (
	bucketTxs    = []byte("txs")
	bucketBlocks = []byte("blocks")
	bucketMeta   = []byte("meta")

	keyTip = []byte("tip")
)

func createBuckets(tx kvdb.ReadWriteTx) error {
	for _, name := range [][]byte{bucketTxs, bucketBlocks, bucketMeta} {
		if _, err := tx.CreateTopLevelBucket(name); err != nil {
			str := fmt.Sprintf("failed to create bucket %s", name)
			return storeError(ErrDatabase, str, err)
		}
	}
	return nil
}

// dropBuckets removes every index bucket.  Missing buckets are skipped.
func dropBuckets(tx kvdb.ReadWriteTx) error {
	for _, name := range [][]byte{bucketTxs, bucketBlocks, bucketMeta} {
		err := tx.DeleteTopLevelBucket(name)
		if err != nil && err != kvdb.ErrBucketNotFound {
			str := fmt.Sprintf("failed to delete bucket %s", name)
			return storeError(ErrDatabase, str, err)
		}
	}
	return nil
}

func valueTxRecord(tx *wire.MsgTx, blockHash *chainhash.Hash) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(chainhash.HashSize + tx.SerializeSize())
	buf.Write(blockHash[:])
	if err := tx.Serialize(&buf); err != nil {
		str := fmt.Sprintf("unable to serialize transaction %v", tx.TxHash())
		return nil, storeError(ErrData, str, err)
	}
	return buf.Bytes(), nil
}

func putTxRecord(ns kvdb.ReadWriteBucket, tx *wire.MsgTx, blockHash *chainhash.Hash) (*chainhash.Hash, error) {
	v, err := valueTxRecord(tx, blockHash)
	if err != nil {
		return nil, err
	}
	txHash := tx.TxHash()
	if err := ns.Put(txHash[:], v); err != nil {
		str := fmt.Sprintf("%s: put failed for %v", bucketTxs, txHash)
		return nil, storeError(ErrDatabase, str, err)
	}
	return &txHash, nil
}

func readTxRecord(txHash *chainhash.Hash, v []byte) (*txEntry, error) {
	if len(v) < chainhash.HashSize {
		str := fmt.Sprintf("%s: short read (expected %d bytes, read %d)",
			bucketTxs, chainhash.HashSize, len(v))
		return nil, storeError(ErrData, str, nil)
	}
	e := &txEntry{tx: new(wire.MsgTx)}
	copy(e.block[:], v[:chainhash.HashSize])
	if err := e.tx.Deserialize(bytes.NewReader(v[chainhash.HashSize:])); err != nil {
		str := fmt.Sprintf("%s: failed to deserialize transaction %v",
			bucketTxs, txHash)
		return nil, storeError(ErrData, str, err)
	}
	return e, nil
}

func valueBlockRecord(block *trackroi.Block, txHashes []chainhash.Hash) []byte {
	v := make([]byte, 16+len(txHashes)*chainhash.HashSize)
	byteOrder.PutUint32(v[0:4], uint32(block.Height))
	byteOrder.PutUint64(v[4:12], uint64(block.Time.Unix()))
	byteOrder.PutUint32(v[12:16], uint32(len(txHashes)))
	off := 16
	for i := range txHashes {
		copy(v[off:], txHashes[i][:])
		off += chainhash.HashSize
	}
	return v
}

func putBlockRecord(ns kvdb.ReadWriteBucket, block *trackroi.Block, txHashes []chainhash.Hash) error {
	err := ns.Put(block.Hash[:], valueBlockRecord(block, txHashes))
	if err != nil {
		str := fmt.Sprintf("%s: put failed for %v", bucketBlocks, block.Hash)
		return storeError(ErrDatabase, str, err)
	}
	return nil
}

// readBlockRecord decodes a block record and the hashes of its indexed
// transactions.
func readBlockRecord(hash *chainhash.Hash, v []byte) (*trackroi.Block, []chainhash.Hash, error) {
	if len(v) < 16 {
		str := fmt.Sprintf("%s: short read (expected %d bytes, read %d)",
			bucketBlocks, 16, len(v))
		return nil, nil, storeError(ErrData, str, nil)
	}
	block := &trackroi.Block{
		Hash:   *hash,
		Height: int32(byteOrder.Uint32(v[0:4])),
		Time:   time.Unix(int64(byteOrder.Uint64(v[4:12])), 0),
	}
	n := int(byteOrder.Uint32(v[12:16]))
	if len(v) != 16+n*chainhash.HashSize {
		str := fmt.Sprintf("%s: malformed record for %v (%d transactions, "+
			"%d bytes)", bucketBlocks, hash, n, len(v))
		return nil, nil, storeError(ErrData, str, nil)
	}
	txHashes := make([]chainhash.Hash, n)
	off := 16
	for i := range txHashes {
		copy(txHashes[i][:], v[off:])
		off += chainhash.HashSize
	}
	return block, txHashes, nil
}

func putTip(ns kvdb.ReadWriteBucket, block *trackroi.Block) error {
	v := make([]byte, chainhash.HashSize+4)
	copy(v, block.Hash[:])
	byteOrder.PutUint32(v[chainhash.HashSize:], uint32(block.Height))
	if err := ns.Put(keyTip, v); err != nil {
		return storeError(ErrDatabase, "failed to store index tip", err)
	}
	return nil
}

func fetchTip(ns kvdb.ReadBucket) (*chainhash.Hash, int32, bool) {
	v := ns.Get(keyTip)
	if len(v) != chainhash.HashSize+4 {
		return nil, 0, false
	}
	var hash chainhash.Hash
	copy(hash[:], v)
	return &hash, int32(byteOrder.Uint32(v[chainhash.HashSize:])), true
}
