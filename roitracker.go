// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io/ioutil"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kyanite/roitracker/chain"
	"github.com/kyanite/roitracker/metrics"
	"github.com/kyanite/roitracker/trackroi"
	"github.com/kyanite/roitracker/txindex"
)

var (
	cfg *config
)

// connectAttempts bounds each connection attempt so shutdown is never held
// up by an unreachable full node.
const connectAttempts = 3

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := trackerMain(); err != nil {
		os.Exit(1)
	}
}

// trackerMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func trackerMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	log.Infof("Version %s", version())

	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			log.Infof("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			log.Errorf("%v", http.ListenAndServe(listenAddr, nil))
		}()
	}

	if cfg.Metrics {
		metrics.InitializePrometheusMetrics()
	}

	netDir := networkDir(cfg.AppDataDir.Value, activeNet.Params)
	source := new(chainSource)
	state := &nodeState{
		walletLoaded: !cfg.NoWallet,
		txIndex:      !cfg.NoTxIndex,
	}

	var (
		txSource trackroi.TxSource = source
		indexer  blockIndexer
	)
	if !cfg.NoTxIndex {
		dbPath := filepath.Join(netDir, txIndexDbName)
		index, err := txindex.Open(dbPath, cfg.IndexCacheSize, source)
		if err != nil {
			log.Errorf("Unable to open transaction index: %v", err)
			return err
		}
		addInterruptHandler(func() {
			if err := index.Close(); err != nil {
				log.Errorf("Failed to close transaction index: %v", err)
			}
		})
		txSource = index
		indexer = index
	} else {
		log.Warn("Transaction index disabled; ROI tracking is off")
	}

	engine := trackroi.New(&trackroi.Config{
		Params:      activeNet,
		Rewards:     activeNet,
		Masternodes: source,
		Source:      txSource,
		Addresses:   trackroi.ScriptDecoder{Params: activeNet.Params},
		State:       state,
		Tuning:      cfg.tuning(),
		DataDir:     netDir,
	})
	engine.LoadOnStartup()

	// Interrupt handlers run in LIFO order, so the final cache write is
	// added before the components feeding the engine.
	addInterruptHandler(func() {
		if err := engine.Flush(); err != nil {
			log.Errorf("Failed to write ROI cache: %v", err)
		}
	})

	t := newTracker(engine, indexer, state)
	t.startFlushLoop(cfg.FlushInterval, engine.Flush)
	certs := readCAFile()
	t.startChainLoop(func() (chain.Interface, error) {
		return startChainRPC(certs)
	}, source)
	addInterruptHandler(func() {
		log.Warn("Stopping block feed...")
		t.Stop()
		log.Info("Block feed shutdown")
	})

	server, err := newHTTPServer(cfg.HTTPListeners, engine)
	if err != nil {
		log.Errorf("Unable to create HTTP server: %v", err)
		simulateInterrupt()
		<-interruptHandlersDone
		return err
	}
	server.Start()
	addInterruptHandler(func() {
		log.Warn("Stopping HTTP server...")
		server.Stop()
		log.Info("HTTP server shutdown")
	})

	<-interruptHandlersDone
	log.Info("Shutdown complete")
	return nil
}

func readCAFile() []byte {
	// Read certificate file if TLS is not disabled.
	var certs []byte
	if !cfg.DisableClientTLS {
		var err error
		certs, err = ioutil.ReadFile(cfg.CAFile.Value)
		if err != nil {
			log.Warnf("Cannot open CA file: %v", err)
			// If there's an error reading the CA file, continue
			// with nil certs and without the client connection.
			certs = nil
		}
	} else {
		log.Info("Chain server RPC TLS is disabled")
	}

	return certs
}

// startChainRPC opens a RPC client connection to the full node for
// blockchain services.  The returned client is running; on error no client
// is left behind.
func startChainRPC(certs []byte) (chain.Interface, error) {
	log.Infof("Attempting RPC client connection to %v", cfg.RPCConnect)
	rpcc, err := chain.NewRPCClient(activeNet.Params, cfg.RPCConnect,
		cfg.RPCUser, cfg.RPCPass, certs, cfg.DisableClientTLS, connectAttempts)
	if err != nil {
		return nil, err
	}
	if err := rpcc.Start(); err != nil {
		rpcc.Stop()
		return nil, err
	}
	return rpcc, nil
}
