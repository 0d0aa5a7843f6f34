// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

const coin = btcutil.SatoshiPerBitcoin

var (
	// baseTime is the timestamp of block zero of every mock chain.
	baseTime = time.Unix(1700000000, 0)

	// blockInterval is the time between any two blocks of a mock chain.
	blockInterval = time.Minute

	testMagic = [4]byte{0xa6, 0xf6, 0xa9, 0xf9}
)

// mockParams is an in-memory implementation of every non transaction
// collaborator of the engine.  Rewards switch to the alternate values from
// changeHeight on when it is non-zero.
type mockParams struct {
	spacing  int64
	minDepth int32

	blockValue btcutil.Amount
	mnPayment  btcutil.Amount
	collateral btcutil.Amount

	changeHeight  int32
	altBlockValue btcutil.Amount
	altMNPayment  btcutil.Amount

	enabled int

	walletLoaded bool
	txIndex      bool
	synced       bool
}

func newMockParams() *mockParams {
	return &mockParams{
		spacing:      60,
		blockValue:   650 * coin,
		mnPayment:    520 * coin,
		collateral:   10000 * coin,
		enabled:      100,
		walletLoaded: true,
		txIndex:      true,
		synced:       true,
	}
}

func (p *mockParams) TargetSpacing() int64 { return p.spacing }
func (p *mockParams) MinStakeDepth(int32) int32 { return p.minDepth }
func (p *mockParams) Magic() [4]byte { return testMagic }
func (p *mockParams) CountEnabled() (int, error) { return p.enabled, nil }
func (p *mockParams) WalletLoaded() bool { return p.walletLoaded }
func (p *mockParams) TxIndexEnabled() bool { return p.txIndex }
func (p *mockParams) IsSynced() bool { return p.synced }
func (p *mockParams) MasternodeCollateral(int32) btcutil.Amount { return p.collateral }

func (p *mockParams) BlockValue(height int32) btcutil.Amount {
	if p.changeHeight > 0 && height >= p.changeHeight {
		return p.altBlockValue
	}
	return p.blockValue
}

func (p *mockParams) MasternodePayment(height int32) btcutil.Amount {
	if p.changeHeight > 0 && height >= p.changeHeight {
		return p.altMNPayment
	}
	return p.mnPayment
}

func (p *mockParams) spiff() btcutil.Amount {
	return p.blockValue - p.mnPayment
}

// mockChain is an in-memory TxSource.
type mockChain struct {
	txs     map[chainhash.Hash]*wire.MsgTx
	txBlock map[chainhash.Hash]chainhash.Hash
	blocks  map[chainhash.Hash]*Block
	heights map[int32]*Block
	nonce   uint32
}

var _ TxSource = (*mockChain)(nil)

func newMockChain() *mockChain {
	return &mockChain{
		txs:     make(map[chainhash.Hash]*wire.MsgTx),
		txBlock: make(map[chainhash.Hash]chainhash.Hash),
		blocks:  make(map[chainhash.Hash]*Block),
		heights: make(map[int32]*Block),
	}
}

func (c *mockChain) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chainhash.Hash, error) {
	tx, ok := c.txs[*hash]
	if !ok {
		return nil, nil, fmt.Errorf("transaction %v not found", hash)
	}
	blockHash := c.txBlock[*hash]
	return tx, &blockHash, nil
}

func (c *mockChain) FetchBlock(hash *chainhash.Hash) (*Block, error) {
	b, ok := c.blocks[*hash]
	if !ok {
		return nil, fmt.Errorf("block %v not found", hash)
	}
	return b, nil
}

// blockAt returns the block at height, creating it on first use.
func (c *mockChain) blockAt(height int32) *Block {
	if b, ok := c.heights[height]; ok {
		return b
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(height))
	b := &Block{
		Hash:   chainhash.DoubleHashH(buf[:]),
		Height: height,
		Time:   baseTime.Add(time.Duration(height) * blockInterval),
	}
	c.heights[height] = b
	c.blocks[b.Hash] = b
	return b
}

// mine places tx in the block at height.
func (c *mockChain) mine(tx *wire.MsgTx, height int32) *Block {
	b := c.blockAt(height)
	hash := tx.TxHash()
	c.txs[hash] = tx
	c.txBlock[hash] = b.Hash
	return b
}

// nextOutPoint returns a unique outpoint that no mock transaction creates.
func (c *mockChain) nextOutPoint() wire.OutPoint {
	c.nonce++
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], c.nonce)
	return wire.OutPoint{Hash: chainhash.HashH(buf[:]), Index: 0}
}

// payScript returns a pay-to-pubkey-hash script for a test key id.
func payScript(id byte) []byte {
	addr, err := btcutil.NewAddressPubKeyHash(bytes.Repeat([]byte{id}, 20),
		&chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		panic(err)
	}
	return script
}

// payAddress returns the address payScript(id) pays.
func payAddress(id byte) string {
	addr, _ := btcutil.NewAddressPubKeyHash(bytes.Repeat([]byte{id}, 20),
		&chaincfg.MainNetParams)
	return addr.EncodeAddress()
}

var mnScript = payScript(0xee)

// originTx returns a plain transaction paying value to script.
func (c *mockChain) originTx(value btcutil.Amount, script []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.TxIn[0].PreviousOutPoint = c.nextOutPoint()
	tx.AddTxOut(wire.NewTxOut(int64(value), script))
	return tx
}

// coinStakeTx returns a regular coinstake spending output idx of prev.  The
// outputs carry the empty marker, the staked value plus spiff, and the
// masternode payment.
func coinStakeTx(prev *wire.MsgTx, idx uint32, spiff, mnPayment btcutil.Amount, payee []byte) *wire.MsgTx {
	prevHash := prev.TxHash()
	stake := prev.TxOut[idx].Value
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, idx), nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, nil))
	tx.AddTxOut(wire.NewTxOut(stake+int64(spiff), payee))
	tx.AddTxOut(wire.NewTxOut(int64(mnPayment), mnScript))
	return tx
}

// splitStakeTx returns a coinstake that spends output idx of prev and splits
// the staked value plus spiff into n equal parts.  Any rounding remainder
// goes to the first part.
func splitStakeTx(prev *wire.MsgTx, idx uint32, n int, spiff, mnPayment btcutil.Amount, payee []byte) *wire.MsgTx {
	prevHash := prev.TxHash()
	total := prev.TxOut[idx].Value + int64(spiff)
	part := total / int64(n)
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, idx), nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, nil))
	for i := 0; i < n; i++ {
		v := part
		if i == 0 {
			v += total - part*int64(n)
		}
		tx.AddTxOut(wire.NewTxOut(v, payee))
	}
	tx.AddTxOut(wire.NewTxOut(int64(mnPayment), mnScript))
	return tx
}

// stakeChain mines an origin transaction of stake at originHeight and one
// regular coinstake per height, each spending the previous stake output.
func (c *mockChain) stakeChain(p *mockParams, id byte, stake btcutil.Amount,
	originHeight int32, heights ...int32) []*wire.MsgTx {

	payee := payScript(id)
	prev := c.originTx(stake, payee)
	c.mine(prev, originHeight)

	stakes := make([]*wire.MsgTx, 0, len(heights))
	for _, h := range heights {
		tx := coinStakeTx(prev, 1, p.spiff(), p.mnPayment, payee)
		if len(prev.TxOut) == 1 {
			tx = coinStakeTx(prev, 0, p.spiff(), p.mnPayment, payee)
		}
		c.mine(tx, h)
		stakes = append(stakes, tx)
		prev = tx
	}
	return stakes
}

func testTuning() Tuning {
	t := DefaultTuning()
	t.MinSamples = 1
	t.MinBucketSize = 1
	t.MinAddrBuckets = 1
	t.MinWeightPoints = 1
	return t
}

func testEngine(p *mockParams, c *mockChain, tuning Tuning, dataDir string) *Engine {
	return New(&Config{
		Params:      p,
		Rewards:     p,
		Masternodes: p,
		Source:      c,
		Addresses:   ScriptDecoder{Params: &chaincfg.MainNetParams},
		State:       p,
		Tuning:      tuning,
		DataDir:     dataDir,
	})
}

// testContext returns a trace context anchored at backHeight with rewards
// taken from p.
func testContext(p *mockParams, c *mockChain, backHeight uint32, lookBack uint32) *traceContext {
	return &traceContext{
		src:          c,
		rewards:      p,
		mnPayment:    p.MasternodePayment(int32(backHeight)),
		blockValue:   p.BlockValue(int32(backHeight)),
		backHeight:   backHeight,
		lookBack:     lookBack,
		lowestHeight: backHeight,
		earliestTime: c.blockAt(int32(backHeight)).Time.Unix(),
	}
}

func checkAscending(t *testing.T, samples []StakeSample) {
	t.Helper()
	for i := 1; i < len(samples); i++ {
		if samples[i].Height <= samples[i-1].Height {
			t.Fatalf("samples not strictly ascending at %d: %d after %d",
				i, samples[i].Height, samples[i-1].Height)
		}
	}
}
