// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex

import "fmt"

// ErrorCode identifies a category of error.
type ErrorCode uint8

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates an error with the underlying database.
	ErrDatabase ErrorCode = iota

	// ErrTxNotFound indicates the transaction is neither indexed nor
	// known to the fallback source.
	ErrTxNotFound

	// ErrBlockNotFound indicates the block is neither indexed nor known
	// to the fallback source.
	ErrBlockNotFound

	// ErrData describes a stored record that could not be decoded.
	ErrData
)

var errStrs = [...]string{
	ErrDatabase:      "ErrDatabase",
	ErrTxNotFound:    "ErrTxNotFound",
	ErrBlockNotFound: "ErrBlockNotFound",
	ErrData:          "ErrData",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if e < ErrorCode(len(errStrs)) {
		return errStrs[e]
	}
	return fmt.Sprintf("ErrorCode(%d)", e)
}

// Error provides a single type for errors that can happen during index
// operation.
type Error struct {
	Code ErrorCode // Describes the kind of error
	Desc string    // Human readable description of the issue
	Err  error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}
	return e.Desc
}

func storeError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether err is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(Error)
	return ok && e.Code == code
}
