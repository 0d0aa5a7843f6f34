// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/kyanite/roitracker/trackroi"
)

func testTx(nonce byte, value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prevHash := chainhash.HashH([]byte{nonce})
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, nil))
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x51}))
	return tx
}

func testBlock(height int32) *trackroi.Block {
	return &trackroi.Block{
		Hash:   chainhash.DoubleHashH([]byte{byte(height), byte(height >> 8)}),
		Height: height,
		Time:   time.Unix(1500000000+int64(height)*60, 0),
	}
}

func setup(t *testing.T, fallback trackroi.TxSource) (*Index, string, func()) {
	dir, err := ioutil.TempDir("", "txindex")
	if err != nil {
		t.Fatalf("unable to create temp dir: %v", err)
	}
	dbPath := filepath.Join(dir, "txindex.db")
	idx, err := Open(dbPath, 16, fallback)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("unable to open index: %v", err)
	}
	return idx, dbPath, func() {
		idx.Close()
		os.RemoveAll(dir)
	}
}

func checkTx(t *testing.T, src trackroi.TxSource, want *wire.MsgTx, wantBlock *chainhash.Hash) {
	t.Helper()
	hash := want.TxHash()
	tx, blockHash, err := src.FetchTransaction(&hash)
	if err != nil {
		t.Fatalf("FetchTransaction %v: %v", hash, err)
	}
	if tx.TxHash() != hash {
		t.Fatalf("fetched wrong transaction: %v", spew.Sdump(tx))
	}
	if *blockHash != *wantBlock {
		t.Fatalf("transaction %v in block %v, want %v", hash, blockHash,
			wantBlock)
	}
}

func TestConnectBlock(t *testing.T) {
	idx, dbPath, teardown := setup(t, nil)
	defer teardown()

	if _, _, ok := idx.Tip(); ok {
		t.Fatal("new index has a tip")
	}

	block := testBlock(100)
	txs := []*wire.MsgTx{testTx(1, 1e8), testTx(2, 2e8)}
	if err := idx.ConnectBlock(block, txs); err != nil {
		t.Fatalf("ConnectBlock: %v", err)
	}
	for _, tx := range txs {
		checkTx(t, idx, tx, &block.Hash)
	}

	got, err := idx.FetchBlock(&block.Hash)
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if got.Height != block.Height || !got.Time.Equal(block.Time) {
		t.Fatalf("unexpected block: got %v, want %v", spew.Sdump(got),
			spew.Sdump(block))
	}

	tip, height, ok := idx.Tip()
	if !ok || *tip != block.Hash || height != 100 {
		t.Fatalf("unexpected tip %v at %d", tip, height)
	}

	// Everything survives a restart.
	idx.Close()
	idx, err = Open(dbPath, 16, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	for _, tx := range txs {
		checkTx(t, idx, tx, &block.Hash)
	}
	if _, height, ok := idx.Tip(); !ok || height != 100 {
		t.Fatalf("tip lost on reopen")
	}
}

func TestDisconnectBlock(t *testing.T) {
	idx, _, teardown := setup(t, nil)
	defer teardown()

	block := testBlock(100)
	tx := testTx(1, 1e8)
	if err := idx.ConnectBlock(block, []*wire.MsgTx{tx}); err != nil {
		t.Fatalf("ConnectBlock: %v", err)
	}
	checkTx(t, idx, tx, &block.Hash)

	if err := idx.DisconnectBlock(&block.Hash); err != nil {
		t.Fatalf("DisconnectBlock: %v", err)
	}
	hash := tx.TxHash()
	if _, _, err := idx.FetchTransaction(&hash); !IsError(err, ErrTxNotFound) {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
	if _, err := idx.FetchBlock(&block.Hash); !IsError(err, ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
	if _, _, ok := idx.Tip(); ok {
		t.Fatal("tip not cleared")
	}

	// Disconnecting an unknown block is a no-op.
	if err := idx.DisconnectBlock(&hash); err != nil {
		t.Fatalf("DisconnectBlock unknown: %v", err)
	}
}

type mockSource struct {
	txs     map[chainhash.Hash]*wire.MsgTx
	txBlock map[chainhash.Hash]chainhash.Hash
	blocks  map[chainhash.Hash]*trackroi.Block
	calls   int
}

func (m *mockSource) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error) {
	m.calls++
	tx, ok := m.txs[*hash]
	if !ok {
		return nil, nil, errors.New("no such transaction")
	}
	b := m.txBlock[*hash]
	return tx, &b, nil
}

func (m *mockSource) FetchBlock(hash *chainhash.Hash) (*trackroi.Block, error) {
	m.calls++
	b, ok := m.blocks[*hash]
	if !ok {
		return nil, errors.New("no such block")
	}
	return b, nil
}

func TestFallback(t *testing.T) {
	block := testBlock(50)
	tx := testTx(9, 5e8)
	hash := tx.TxHash()
	src := &mockSource{
		txs:     map[chainhash.Hash]*wire.MsgTx{hash: tx},
		txBlock: map[chainhash.Hash]chainhash.Hash{hash: block.Hash},
		blocks:  map[chainhash.Hash]*trackroi.Block{block.Hash: block},
	}

	idx, dbPath, teardown := setup(t, src)
	defer teardown()

	checkTx(t, idx, tx, &block.Hash)
	if src.calls != 2 {
		t.Fatalf("expected 2 fallback calls, got %d", src.calls)
	}

	// Cached and indexed lookups don't reach the fallback.
	checkTx(t, idx, tx, &block.Hash)
	if _, err := idx.FetchBlock(&block.Hash); err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("fallback called again: %d calls", src.calls)
	}

	idx.Close()
	idx, err := Open(dbPath, 16, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	checkTx(t, idx, tx, &block.Hash)
	got, err := idx.FetchBlock(&block.Hash)
	if err != nil || got.Height != 50 {
		t.Fatalf("fallback block not indexed: %v %v", got, err)
	}

	missing := chainhash.HashH([]byte("missing"))
	if _, _, err := idx.FetchTransaction(&missing); !IsError(err, ErrTxNotFound) {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
}

func TestDrop(t *testing.T) {
	idx, dbPath, teardown := setup(t, nil)
	defer teardown()

	block := testBlock(100)
	tx := testTx(1, 1e8)
	if err := idx.ConnectBlock(block, []*wire.MsgTx{tx}); err != nil {
		t.Fatalf("ConnectBlock: %v", err)
	}
	idx.Close()

	if err := Drop(dbPath); err != nil {
		t.Fatalf("Drop: %v", err)
	}

	idx, err := Open(dbPath, 16, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	hash := tx.TxHash()
	if _, _, err := idx.FetchTransaction(&hash); !IsError(err, ErrTxNotFound) {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
	if _, _, ok := idx.Tip(); ok {
		t.Fatal("tip survived drop")
	}

	if err := Drop(filepath.Join(filepath.Dir(dbPath), "missing.db")); !IsError(err, ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
}

func TestReadBlockRecordMalformed(t *testing.T) {
	block := testBlock(7)
	v := valueBlockRecord(block, []chainhash.Hash{{1}, {2}})
	if _, hashes, err := readBlockRecord(&block.Hash, v); err != nil || len(hashes) != 2 {
		t.Fatalf("valid record: %v %v", hashes, err)
	}
	if _, _, err := readBlockRecord(&block.Hash, v[:len(v)-1]); !IsError(err, ErrData) {
		t.Fatalf("expected ErrData, got %v", err)
	}
	if _, _, err := readBlockRecord(&block.Hash, v[:10]); !IsError(err, ErrData) {
		t.Fatalf("expected ErrData, got %v", err)
	}
}
