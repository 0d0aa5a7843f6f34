// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package bdb implements a kvdb backend on top of bbolt.

Import it for its side effect of registering the "bdb" driver:

	import (
		"github.com/kyanite/roitracker/kvdb"
		_ "github.com/kyanite/roitracker/kvdb/bdb"
	)

	db, err := kvdb.Create("bdb", "path/to/database.db")
*/
package bdb

import (
	"fmt"

	"github.com/kyanite/roitracker/kvdb"
)

const dbType = "bdb"

// parseArgs extracts the database path from the Open and Create arguments.
func parseArgs(funcName string, args ...interface{}) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("invalid arguments to %s.%s -- "+
			"expected database path", dbType, funcName)
	}

	dbPath, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("first argument to %s.%s is invalid -- "+
			"expected database path string", dbType, funcName)
	}
	return dbPath, nil
}

func openDBDriver(args ...interface{}) (kvdb.DB, error) {
	dbPath, err := parseArgs("Open", args...)
	if err != nil {
		return nil, err
	}
	return openDB(dbPath, false)
}

func createDBDriver(args ...interface{}) (kvdb.DB, error) {
	dbPath, err := parseArgs("Create", args...)
	if err != nil {
		return nil, err
	}
	return openDB(dbPath, true)
}

func init() {
	driver := kvdb.Driver{
		DbType: dbType,
		Create: createDBDriver,
		Open:   openDBDriver,
	}
	if err := kvdb.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("Failed to register database driver '%s': %v",
			dbType, err))
	}
}
