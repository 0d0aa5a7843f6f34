// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/kyanite/roitracker/trackroi"
	"github.com/kyanite/roitracker/txindex"
)

const defaultNet = "mainnet"

var datadir = btcutil.AppDataDir("roitracker", false)

// Flags.
var opts = struct {
	Force  bool   `short:"f" description:"Force removal without prompt"`
	DbPath string `long:"db" description:"Path to transaction index database"`
	Cache  bool   `long:"cache" description:"Also remove the ROI sample cache next to the index"`
}{
	Force:  false,
	DbPath: filepath.Join(datadir, defaultNet, "txindex.db"),
}

func init() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}
}

func yes(s string) bool {
	switch s {
	case "y", "Y", "yes", "Yes":
		return true
	default:
		return false
	}
}

func no(s string) bool {
	switch s {
	case "n", "N", "no", "No":
		return true
	default:
		return false
	}
}

// confirm asks question until a yes or no answer is read.  EOF and an empty
// answer count as no.
func confirm(question string) (bool, error) {
	scanner := bufio.NewScanner(bufio.NewReader(os.Stdin))
	for {
		fmt.Print(question + " [y/N] ")
		if !scanner.Scan() {
			return false, scanner.Err()
		}
		resp := scanner.Text()
		if yes(resp) {
			return true, nil
		}
		if no(resp) || resp == "" {
			return false, nil
		}
		fmt.Println("Enter yes or no.")
	}
}

func main() {
	os.Exit(mainInt())
}

func mainInt() int {
	fmt.Println("Database path:", opts.DbPath)
	_, err := os.Stat(opts.DbPath)
	if os.IsNotExist(err) {
		fmt.Println("Database file does not exist")
		return 1
	}

	if !opts.Force {
		ok, err := confirm("Drop all transaction index data?")
		if err != nil {
			fmt.Println()
			fmt.Println(err)
			return 1
		}
		if !ok {
			return 0
		}
	}

	fmt.Println("Dropping transaction index")
	if err := txindex.Drop(opts.DbPath); err != nil {
		fmt.Println("Failed to drop and re-create index:", err)
		return 1
	}

	if !opts.Cache {
		return 0
	}
	cachePath := filepath.Join(filepath.Dir(opts.DbPath), trackroi.CacheFilename)
	fmt.Println("Removing ROI sample cache", cachePath)
	err = os.Remove(cachePath)
	if err != nil && !os.IsNotExist(err) {
		fmt.Println("Failed to remove ROI sample cache:", err)
		return 1
	}
	return 0
}
