// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"os"
)

// FileExists reports whether the named file or directory exists.
func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CheckCreateDir creates path and any missing parents, failing when path
// exists but is not a directory.
func CheckCreateDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("error checking directory: %s", err)
		}
		if err = os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("cannot create directory: %s", err)
		}
		return nil
	}
	if !fi.IsDir() {
		return fmt.Errorf("path '%s' is not a directory", path)
	}
	return nil
}
