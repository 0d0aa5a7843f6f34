// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// sampleSize is the serialized size of a StakeSample.
const sampleSize = 8 + 4 + chainhash.HashSize

// StakeSample records one coinstake seen in a newly connected block.
type StakeSample struct {
	Time   int64
	Height uint32
	TxHash chainhash.Hash
}

// StakeAnalyze is one hop of a reconstructed stake chain.  Stake is the
// amount staked before the reward of the block at CurHeight was added and
// PrevHeight is the height of the transaction that funded it.
type StakeAnalyze struct {
	Stake      btcutil.Amount
	CurHeight  uint32
	PrevHeight uint32
	Depth      int
}

// String returns the hop in the csv layout used by the debug log.
func (sa *StakeAnalyze) String() string {
	return fmt.Sprintf("dp%02d, stake, %d, curhgt, %d, prvhgt, %d",
		sa.Depth, int64(sa.Stake), sa.CurHeight, sa.PrevHeight)
}

func writeSample(w io.Writer, s *StakeSample) error {
	var buf [sampleSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(s.Time))
	binary.LittleEndian.PutUint32(buf[8:12], s.Height)
	copy(buf[12:], s.TxHash[:])
	_, err := w.Write(buf[:])
	return err
}

func readSample(r io.Reader, s *StakeSample) error {
	var buf [sampleSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	s.Time = int64(binary.LittleEndian.Uint64(buf[0:8]))
	s.Height = binary.LittleEndian.Uint32(buf[8:12])
	copy(s.TxHash[:], buf[12:])
	return nil
}

// serializeSamples writes the samples as a var-int count followed by each
// sample.
func serializeSamples(w io.Writer, samples []StakeSample) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(samples))); err != nil {
		return err
	}
	for i := range samples {
		if err := writeSample(w, &samples[i]); err != nil {
			return err
		}
	}
	return nil
}

// deserializeSamples reads a sample sequence written by serializeSamples.
// remaining bounds the count so a corrupt prefix cannot force a huge
// allocation.
func deserializeSamples(r io.Reader, remaining int) ([]StakeSample, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > uint64(remaining/sampleSize) {
		return nil, fmt.Errorf("sample count %d exceeds available data", count)
	}
	samples := make([]StakeSample, count)
	for i := range samples {
		if err := readSample(r, &samples[i]); err != nil {
			return nil, err
		}
	}
	return samples, nil
}
