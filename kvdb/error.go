// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kvdb

import "errors"

// Driver errors.
var (
	// ErrDbTypeRegistered is returned when two backends register the same
	// type.
	ErrDbTypeRegistered = errors.New("database type already registered")

	// ErrDbUnknownType is returned when no backend of the requested type
	// is registered.
	ErrDbUnknownType = errors.New("unknown database type")
)

// Database errors.
var (
	ErrDbDoesNotExist = errors.New("database does not exist")
	ErrDbNotOpen      = errors.New("database not open")
	ErrInvalid        = errors.New("invalid database")
)

// Transaction and bucket errors.
var (
	ErrTxClosed           = errors.New("tx closed")
	ErrTxNotWritable      = errors.New("tx not writable")
	ErrBucketNameRequired = errors.New("bucket name required")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrKeyRequired        = errors.New("key required")
	ErrKeyTooLarge        = errors.New("key too large")
	ErrValueTooLarge      = errors.New("value too large")
	ErrIncompatibleValue  = errors.New("incompatible value")
)
