// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import "fmt"

const appVersion = "0.3.0"

// gitCommit and versionMeta are set at build time with
// -ldflags "-X main.gitCommit=... -X main.versionMeta=...".
var (
	gitCommit   string
	versionMeta = "alpha"
)

// version returns the application version string.
func version() string {
	v := appVersion
	if versionMeta != "" {
		v = fmt.Sprintf("%s-%s", v, versionMeta)
	}
	if gitCommit != "" {
		v = fmt.Sprintf("%s+%s", v, gitCommit)
	}
	return v
}
