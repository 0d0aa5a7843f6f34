// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trackroi

import "fmt"

// ErrorCode identifies a category of error.
type ErrorCode uint8

// These constants are used to identify a specific Error.
const (
	// ErrTxIndexDisabled indicates ROI generation was requested on a node
	// without a transaction index.  Predecessor lookups are impossible
	// without one.
	ErrTxIndexDisabled ErrorCode = iota

	// ErrNotReady indicates no qualifying block has been recorded since
	// startup, so the sample interval is still unknown.
	ErrNotReady

	// ErrInsufficientSamples indicates the sample store holds fewer
	// samples than the configured minimum.
	ErrInsufficientSamples

	// ErrInsufficientAddresses indicates too few payee addresses were
	// reconstructed from the samples to produce statistics.
	ErrInsufficientAddresses

	// ErrCacheIO describes a failure reading or writing the cache file.
	ErrCacheIO

	// ErrCacheCorrupt indicates the cache checksum did not match its
	// contents.
	ErrCacheCorrupt

	// ErrWrongNetwork indicates the cache was written for another network.
	ErrWrongNetwork

	// ErrCacheFormat indicates the cache passed its checksum but the
	// sample sequence could not be decoded or violates the ordering of the
	// sample store.
	ErrCacheFormat

	// ErrData describes inconsistent chain data returned by a
	// collaborator, such as a spent output that does not exist.
	ErrData
)

var errStrs = [...]string{
	ErrTxIndexDisabled:       "ErrTxIndexDisabled",
	ErrNotReady:              "ErrNotReady",
	ErrInsufficientSamples:   "ErrInsufficientSamples",
	ErrInsufficientAddresses: "ErrInsufficientAddresses",
	ErrCacheIO:               "ErrCacheIO",
	ErrCacheCorrupt:          "ErrCacheCorrupt",
	ErrWrongNetwork:          "ErrWrongNetwork",
	ErrCacheFormat:           "ErrCacheFormat",
	ErrData:                  "ErrData",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if e < ErrorCode(len(errStrs)) {
		return errStrs[e]
	}
	return fmt.Sprintf("ErrorCode(%d)", e)
}

// Error provides a single type for errors that can happen during ROI
// tracking.
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

func roiError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether err is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(Error)
	return ok && e.Code == code
}

// IsInsufficientData returns whether err reports a precondition that will
// resolve itself once more blocks have been recorded.
func IsInsufficientData(err error) bool {
	e, ok := err.(Error)
	if !ok {
		return false
	}
	switch e.Code {
	case ErrNotReady, ErrInsufficientSamples, ErrInsufficientAddresses:
		return true
	}
	return false
}
