// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// CacheFilename is the name of the sample cache inside the data directory.
const CacheFilename = "roicache.dat"

// CacheFile persists the sample store as
//
//	magic (4 bytes) || samples || double-SHA256 of the preceding bytes
//
// and replaces the file atomically on every write.
type CacheFile struct {
	dir   string
	path  string
	magic [4]byte
}

// NewCacheFile returns the cache file in dir for the network identified by
// magic.
func NewCacheFile(dir string, magic [4]byte) *CacheFile {
	return &CacheFile{
		dir:   dir,
		path:  filepath.Join(dir, CacheFilename),
		magic: magic,
	}
}

// Path returns the location of the cache file.
func (c *CacheFile) Path() string {
	return c.path
}

// Write serializes samples to a temporary file, syncs it and renames it over
// the cache file.
func (c *CacheFile) Write(samples []StakeSample) error {
	var buf bytes.Buffer
	buf.Grow(4 + 9 + len(samples)*sampleSize + chainhash.HashSize)
	buf.Write(c.magic[:])
	if err := serializeSamples(&buf, samples); err != nil {
		return roiError(ErrCacheIO, "serialize samples", err)
	}
	sum := chainhash.DoubleHashB(buf.Bytes())
	buf.Write(sum)

	var rnd [2]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return roiError(ErrCacheIO, "random temp name", err)
	}
	tmpPath := filepath.Join(c.dir, fmt.Sprintf("%s.%04x", CacheFilename,
		binary.LittleEndian.Uint16(rnd[:])))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return roiError(ErrCacheIO, "failed to open "+tmpPath, err)
	}
	if _, err = f.Write(buf.Bytes()); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return roiError(ErrCacheIO, "failed to write "+tmpPath, err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return roiError(ErrCacheIO, "rename-into-place failed", err)
	}
	return nil
}

// Read loads and verifies the cache file.  The returned samples are in
// strictly ascending height order.
func (c *CacheFile) Read() ([]StakeSample, error) {
	data, err := ioutil.ReadFile(c.path)
	if err != nil {
		return nil, roiError(ErrCacheIO, "failed to read "+c.path, err)
	}
	if len(data) < len(c.magic)+chainhash.HashSize {
		return nil, roiError(ErrCacheFormat, "cache file truncated", nil)
	}

	split := len(data) - chainhash.HashSize
	payload, sum := data[:split], data[split:]
	if !bytes.Equal(chainhash.DoubleHashB(payload), sum) {
		return nil, roiError(ErrCacheCorrupt,
			"checksum mismatch, data corrupted", nil)
	}

	if !bytes.Equal(payload[:len(c.magic)], c.magic[:]) {
		return nil, roiError(ErrWrongNetwork,
			"invalid network magic number", nil)
	}
	payload = payload[len(c.magic):]

	r := bytes.NewReader(payload)
	samples, err := deserializeSamples(r, len(payload))
	if err != nil {
		return nil, roiError(ErrCacheFormat, "deserialize samples", err)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Height <= samples[i-1].Height {
			str := fmt.Sprintf("sample heights out of order at "+
				"index %d", i)
			return nil, roiError(ErrCacheFormat, str, nil)
		}
	}
	return samples, nil
}

// LoadOnStartup replaces the sample store with the cached samples, if any.
// Any cache problem leaves the store empty.  The first automatic flush is
// scheduled fifteen minutes out.
func (e *Engine) LoadOnStartup() {
	if e.cache == nil {
		return
	}
	start := time.Now()

	e.mtx.Lock()
	e.lastFlush = e.cfg.Now().Unix() - (flushInterval - 900)
	e.mtx.Unlock()

	samples, err := e.cache.Read()
	if err != nil {
		log.Infof("Invalid or missing %s (%v): will recreate",
			CacheFilename, err)
		return
	}

	log.Infof("Loaded %d transaction records from %s %v", len(samples),
		CacheFilename, time.Since(start))
	e.mtx.Lock()
	e.samples = samples
	e.mtx.Unlock()
	metricSamples().Set(float64(len(samples)))
}

// Flush writes the sample store to the cache file.
func (e *Engine) Flush() error {
	if e.cache == nil {
		return nil
	}

	e.flushMtx.Lock()
	defer e.flushMtx.Unlock()

	samples := e.Samples()
	if err := e.cache.Write(samples); err != nil {
		return err
	}
	log.Debugf("Wrote %d samples to %s", len(samples), e.cache.Path())
	metricCacheFlushes().Add(1)
	return nil
}
