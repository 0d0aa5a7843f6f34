// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kvdb provides a transactional key/value store with pluggable
// backends.  Data lives in named top-level buckets of flat key/value pairs.
package kvdb

// ReadTx is a read-only transaction.
type ReadTx interface {
	// ReadBucket opens the top-level bucket with the given key.  It
	// returns nil if the bucket does not exist.
	ReadBucket(key []byte) ReadBucket

	// Rollback closes the transaction.
	Rollback() error
}

// ReadWriteTx is a transaction that may modify the database.  Changes are
// only persisted by Commit.
type ReadWriteTx interface {
	ReadTx

	ReadWriteBucket(key []byte) ReadWriteBucket

	// CreateTopLevelBucket creates the named bucket if it does not exist
	// yet and returns it.
	CreateTopLevelBucket(key []byte) (ReadWriteBucket, error)

	// DeleteTopLevelBucket removes the named bucket and everything in
	// it.  It returns ErrBucketNotFound if the bucket does not exist.
	DeleteTopLevelBucket(key []byte) error

	Commit() error
}

// ReadBucket is a read-only view of a bucket.
type ReadBucket interface {
	// Get returns the value for key or nil.  The returned slice is only
	// valid for the lifetime of the transaction.
	Get(key []byte) []byte

	// ForEach calls fn with every key/value pair of the bucket in key
	// order.  Iteration stops at the first error.
	ForEach(fn func(k, v []byte) error) error
}

// ReadWriteBucket is a bucket that may be modified.
type ReadWriteBucket interface {
	ReadBucket

	Put(key, value []byte) error

	// Delete removes key.  Deleting a missing key is not an error.
	Delete(key []byte) error
}

// DB is an open database.
type DB interface {
	BeginReadTx() (ReadTx, error)
	BeginReadWriteTx() (ReadWriteTx, error)
	Close() error
}

// View runs f inside a read-only transaction and closes it afterwards.
func View(db DB, f func(tx ReadTx) error) error {
	tx, err := db.BeginReadTx()
	if err != nil {
		return err
	}
	err = f(tx)
	rollbackErr := tx.Rollback()
	if err != nil {
		return err
	}
	return rollbackErr
}

// Update runs f inside a read-write transaction.  The transaction is
// committed if f succeeds and rolled back otherwise.
func Update(db DB, f func(tx ReadWriteTx) error) error {
	tx, err := db.BeginReadWriteTx()
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Driver describes a backend that can be registered with the package.
type Driver struct {
	// DbType uniquely identifies the backend.
	DbType string

	// Create creates and opens a new database.
	Create func(args ...interface{}) (DB, error)

	// Open opens an existing database.
	Open func(args ...interface{}) (DB, error)
}

var drivers = make(map[string]*Driver)

// RegisterDriver adds a backend.  It returns ErrDbTypeRegistered if a
// backend of the same type was already registered.
func RegisterDriver(driver Driver) error {
	if _, exists := drivers[driver.DbType]; exists {
		return ErrDbTypeRegistered
	}
	drivers[driver.DbType] = &driver
	return nil
}

// SupportedDrivers returns the types of all registered backends.
func SupportedDrivers() []string {
	types := make([]string, 0, len(drivers))
	for _, drv := range drivers {
		types = append(types, drv.DbType)
	}
	return types
}

// Create creates a database of the given type.  The arguments are backend
// specific.
func Create(dbType string, args ...interface{}) (DB, error) {
	drv, exists := drivers[dbType]
	if !exists {
		return nil, ErrDbUnknownType
	}
	return drv.Create(args...)
}

// Open opens an existing database of the given type.  The arguments are
// backend specific.
func Open(dbType string, args ...interface{}) (DB, error) {
	drv, exists := drivers[dbType]
	if !exists {
		return nil, ErrDbUnknownType
	}
	return drv.Open(args...)
}
