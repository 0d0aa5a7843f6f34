// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bdb

import (
	"os"
	"time"

	"github.com/coreos/bbolt"
	"github.com/kyanite/roitracker/kvdb"
)

// convertErr maps bolt errors to their kvdb equivalents.
func convertErr(err error) error {
	switch err {
	case bbolt.ErrDatabaseNotOpen:
		return kvdb.ErrDbNotOpen
	case bbolt.ErrInvalid:
		return kvdb.ErrInvalid
	case bbolt.ErrTxNotWritable:
		return kvdb.ErrTxNotWritable
	case bbolt.ErrTxClosed:
		return kvdb.ErrTxClosed
	case bbolt.ErrBucketNameRequired:
		return kvdb.ErrBucketNameRequired
	case bbolt.ErrBucketNotFound:
		return kvdb.ErrBucketNotFound
	case bbolt.ErrKeyRequired:
		return kvdb.ErrKeyRequired
	case bbolt.ErrKeyTooLarge:
		return kvdb.ErrKeyTooLarge
	case bbolt.ErrValueTooLarge:
		return kvdb.ErrValueTooLarge
	case bbolt.ErrIncompatibleValue:
		return kvdb.ErrIncompatibleValue
	}
	return err
}

type transaction struct {
	boltTx *bbolt.Tx
}

func (tx *transaction) ReadBucket(key []byte) kvdb.ReadBucket {
	return tx.ReadWriteBucket(key)
}

func (tx *transaction) ReadWriteBucket(key []byte) kvdb.ReadWriteBucket {
	boltBucket := tx.boltTx.Bucket(key)
	if boltBucket == nil {
		return nil
	}
	return (*bucket)(boltBucket)
}

func (tx *transaction) CreateTopLevelBucket(key []byte) (kvdb.ReadWriteBucket, error) {
	boltBucket, err := tx.boltTx.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (tx *transaction) DeleteTopLevelBucket(key []byte) error {
	return convertErr(tx.boltTx.DeleteBucket(key))
}

func (tx *transaction) Commit() error {
	return convertErr(tx.boltTx.Commit())
}

func (tx *transaction) Rollback() error {
	return convertErr(tx.boltTx.Rollback())
}

type bucket bbolt.Bucket

var _ kvdb.ReadWriteBucket = (*bucket)(nil)

func (b *bucket) Get(key []byte) []byte {
	return (*bbolt.Bucket)(b).Get(key)
}

func (b *bucket) ForEach(fn func(k, v []byte) error) error {
	return convertErr((*bbolt.Bucket)(b).ForEach(fn))
}

func (b *bucket) Put(key, value []byte) error {
	return convertErr((*bbolt.Bucket)(b).Put(key, value))
}

func (b *bucket) Delete(key []byte) error {
	return convertErr((*bbolt.Bucket)(b).Delete(key))
}

type db bbolt.DB

var _ kvdb.DB = (*db)(nil)

func (db *db) beginTx(writable bool) (*transaction, error) {
	boltTx, err := (*bbolt.DB)(db).Begin(writable)
	if err != nil {
		return nil, convertErr(err)
	}
	return &transaction{boltTx: boltTx}, nil
}

func (db *db) BeginReadTx() (kvdb.ReadTx, error) {
	return db.beginTx(false)
}

func (db *db) BeginReadWriteTx() (kvdb.ReadWriteTx, error) {
	return db.beginTx(true)
}

func (db *db) Close() error {
	return convertErr((*bbolt.DB)(db).Close())
}

func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// openDB opens the database at dbPath.  kvdb.ErrDbDoesNotExist is returned
// if the file is missing and create is not set.
func openDB(dbPath string, create bool) (kvdb.DB, error) {
	if !create && !fileExists(dbPath) {
		return nil, kvdb.ErrDbDoesNotExist
	}

	// A second process holding the file lock fails the open instead of
	// blocking forever.
	opts := &bbolt.Options{Timeout: time.Second}
	boltDB, err := bbolt.Open(dbPath, 0600, opts)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*db)(boltDB), nil
}
