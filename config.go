// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/kyanite/roitracker/internal/cfgutil"
	"github.com/kyanite/roitracker/netparams"
	"github.com/kyanite/roitracker/trackroi"
	"github.com/kyanite/roitracker/txindex"
)

const (
	defaultCAFilename     = "node.cert"
	defaultConfigFilename = "roitracker.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "roitracker.log"
	defaultFlushInterval  = time.Hour

	txIndexDbName = "txindex.db"
)

var (
	nodeDefaultCAFile = filepath.Join(btcutil.AppDataDir("kyanited", false), "rpc.cert")
	defaultAppDataDir = btcutil.AppDataDir("roitracker", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// activeNet is the network the tracker runs against.
var activeNet = &netparams.MainNetParams

type config struct {
	// General application behavior
	ConfigFile  *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir  *cfgutil.ExplicitString `short:"A" long:"appdata" description:"Application data directory for config, caches and logs"`
	TestNet     bool                    `long:"testnet" description:"Use the test network (default mainnet)"`
	RegTest     bool                    `long:"regtest" description:"Use the regression test network (default mainnet)"`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir      string                  `long:"logdir" description:"Directory to log output."`
	Profile     string                  `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`

	// Chain server options
	RPCConnect       string                  `short:"c" long:"rpcconnect" description:"Hostname/IP and port of the full node RPC server to connect to (default localhost:7758, testnet: localhost:8758, regtest: localhost:9758)"`
	CAFile           *cfgutil.ExplicitString `long:"cafile" description:"File containing root certificates to authenticate a TLS connection with the full node"`
	DisableClientTLS bool                    `long:"noclienttls" description:"Disable TLS for the RPC client -- NOTE: This is only allowed if the RPC client is connecting to localhost"`
	RPCUser          string                  `short:"u" long:"rpcuser" description:"Username for full node RPC authentication"`
	RPCPass          string                  `short:"P" long:"rpcpass" default-mask:"-" description:"Password for full node RPC authentication"`

	// Tracker options
	NoTxIndex      bool          `long:"notxindex" description:"Disable the local transaction index, which also disables ROI tracking"`
	IndexCacheSize int           `long:"indexcache" description:"Number of transactions and blocks the index keeps in memory"`
	NoWallet       bool          `long:"nowallet" description:"Run without a wallet; no samples are recorded"`
	HTTPListeners  []string      `long:"httplisten" description:"Listen for HTTP queries on this interface/port (default port: 7760, testnet: 8760, regtest: 9760)"`
	Metrics        bool          `long:"metrics" description:"Serve Prometheus metrics on /metrics"`
	FlushInterval  time.Duration `long:"flushinterval" description:"Interval between background writes of roicache.dat, 0 to disable.  Valid time units are {s, m, h}"`

	// Analysis tuning
	SampleDays      int  `long:"sampledays" description:"Days of coinstakes to collect"`
	LookBackDays    int  `long:"lookbackdays" description:"Days a stake chain may reach back"`
	MinSamples      int  `long:"minsamples" description:"Minimum number of samples to calculate ROI"`
	MinBucketSize   int  `long:"minbucketsize" description:"Chain entries an address must exceed to qualify"`
	MinAddrBuckets  int  `long:"minaddrbuckets" description:"Minimum number of address buckets"`
	MinWeightPoints int  `long:"minweightpoints" description:"Minimum number of qualified weight points for a confident staking ROI"`
	NoRange         bool `long:"norange" description:"Leave the outlier trimmed ROI out of reports"`
	CSVLog          bool `long:"csvlog" description:"Dump every analysis record to the debug log"`
}

// tuning returns the analysis thresholds selected by the configuration.
func (cfg *config) tuning() trackroi.Tuning {
	return trackroi.Tuning{
		SampleDays:      cfg.SampleDays,
		LookBackDays:    cfg.LookBackDays,
		MinSamples:      cfg.MinSamples,
		MinBucketSize:   cfg.MinBucketSize,
		MinAddrBuckets:  cfg.MinAddrBuckets,
		MinWeightPoints: cfg.MinWeightPoints,
		UseRange:        !cfg.NoRange,
		CSVLog:          cfg.CSVLog,
	}
}

// validateTuning checks the analysis thresholds for values the engine can
// not work with.
func validateTuning(t *trackroi.Tuning) error {
	switch {
	case t.SampleDays <= 0:
		return fmt.Errorf("sampledays must be positive, got %d", t.SampleDays)
	case t.LookBackDays < t.SampleDays:
		return fmt.Errorf("lookbackdays (%d) may not be less than "+
			"sampledays (%d)", t.LookBackDays, t.SampleDays)
	case t.MinSamples <= 0:
		return fmt.Errorf("minsamples must be positive, got %d", t.MinSamples)
	case t.MinBucketSize < 0 || t.MinAddrBuckets < 0 || t.MinWeightPoints < 0:
		return fmt.Errorf("minbucketsize, minaddrbuckets and " +
			"minweightpoints may not be negative")
	}
	return nil
}

// networkDir returns the directory name of a network directory to hold
// the caches of a network.
func networkDir(dataDir string, chainParams *chaincfg.Params) string {
	netname := chainParams.Name

	// For now, we must always name the testnet data directory as "testnet"
	// and not "testnet3" or any other version, as the chaincfg testnet3
	// paramaters will likely be switched to being named "testnet3" in the
	// future.
	if chainParams.Net == wire.TestNet3 {
		netname = "testnet"
	}

	return filepath.Join(dataDir, netname)
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// defaultConfig returns the configuration used before any file or command
// line options are applied.
func defaultConfig() config {
	tuning := trackroi.DefaultTuning()
	return config{
		DebugLevel:      defaultLogLevel,
		ConfigFile:      cfgutil.NewExplicitString(defaultConfigFile),
		AppDataDir:      cfgutil.NewExplicitString(defaultAppDataDir),
		LogDir:          defaultLogDir,
		CAFile:          cfgutil.NewExplicitString(""),
		IndexCacheSize:  txindex.DefaultCacheSize,
		FlushInterval:   defaultFlushInterval,
		SampleDays:      tuning.SampleDays,
		LookBackDays:    tuning.LookBackDays,
		MinSamples:      tuning.MinSamples,
		MinBucketSize:   tuning.MinBucketSize,
		MinAddrBuckets:  tuning.MinAddrBuckets,
		MinWeightPoints: tuning.MinWeightPoints,
		NoRange:         !tuning.UseRange,
		CSVLog:          tuning.CSVLog,
	}
}

// selectNetwork sets activeNet from the network flags.  Multiple networks
// can't be selected simultaneously.
func selectNetwork(cfg *config) error {
	numNets := 0
	activeNet = &netparams.MainNetParams
	if cfg.TestNet {
		activeNet = &netparams.TestNetParams
		numNets++
	}
	if cfg.RegTest {
		activeNet = &netparams.RegTestParams
		numNets++
	}
	if numNets > 1 {
		return fmt.Errorf("The testnet and regtest params can't be " +
			"used together -- choose one")
	}
	return nil
}

// normalizeListeners fills in the default HTTP listeners, adds the default
// port where missing and removes duplicates.
func normalizeListeners(cfg *config) error {
	if len(cfg.HTTPListeners) == 0 {
		addrs, err := net.LookupHost("localhost")
		if err != nil {
			return err
		}
		cfg.HTTPListeners = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addr = net.JoinHostPort(addr, activeNet.HTTPPort)
			cfg.HTTPListeners = append(cfg.HTTPListeners, addr)
		}
	}

	var err error
	cfg.HTTPListeners, err = cfgutil.NormalizeAddresses(cfg.HTTPListeners,
		activeNet.HTTPPort)
	if err != nil {
		return fmt.Errorf("Invalid network address in HTTP listeners: %v", err)
	}
	return nil
}

// normalizeChainServer resolves the full node address and its certificate.
func normalizeChainServer(cfg *config) error {
	if cfg.RPCConnect == "" {
		cfg.RPCConnect = net.JoinHostPort("localhost", activeNet.RPCClientPort)
	}

	// Add default port to connect flag if missing.
	var err error
	cfg.RPCConnect, err = cfgutil.NormalizeAddress(cfg.RPCConnect,
		activeNet.RPCClientPort)
	if err != nil {
		return fmt.Errorf("Invalid rpcconnect network address: %v", err)
	}

	local, err := cfgutil.IsLoopback(cfg.RPCConnect)
	if err != nil {
		return err
	}
	if cfg.DisableClientTLS {
		if !local {
			return fmt.Errorf("the --noclienttls option may not be "+
				"used when connecting RPC to non localhost "+
				"addresses: %s", cfg.RPCConnect)
		}
		return nil
	}

	// If CAFile is unset, choose either the copy or local node cert.
	if !cfg.CAFile.ExplicitlySet() {
		cfg.CAFile.Value = filepath.Join(cfg.AppDataDir.Value, defaultCAFilename)

		// If the CA copy does not exist, check if we're connecting to
		// a local node and switch to its RPC cert if it exists.
		certExists, err := cfgutil.FileExists(cfg.CAFile.Value)
		if err != nil {
			return err
		}
		if !certExists && local {
			nodeCertExists, err := cfgutil.FileExists(nodeDefaultCAFile)
			if err != nil {
				return err
			}
			if nodeCertExists {
				cfg.CAFile.Value = nodeDefaultCAFile
			}
		}
	}
	cfg.CAFile.Value = cleanAndExpandPath(cfg.CAFile.Value)
	return nil
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1) Start with a default config with sane settings
//  2) Pre-parse the command line to check for an alternative config file
//  3) Load configuration file overwriting defaults with any specified options
//  4) Parse CLI options and overwrite/add any specified options
//
// The above results in roitracker functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := preCfg.ConfigFile.Value
	if preCfg.ConfigFile.ExplicitlySet() {
		configFilePath = cleanAndExpandPath(configFilePath)
	} else if appDataDir := preCfg.AppDataDir.Value; appDataDir != defaultAppDataDir {
		configFilePath = filepath.Join(cleanAndExpandPath(appDataDir),
			defaultConfigFilename)
	}
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	cfg.AppDataDir.Value = cleanAndExpandPath(cfg.AppDataDir.Value)

	if err := selectNetwork(&cfg); err != nil {
		err = fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, activeNet.Params.Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized, the
	// logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	tuning := cfg.tuning()
	if err := validateTuning(&tuning); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	if cfg.FlushInterval < 0 {
		err := fmt.Errorf("%s: flushinterval may not be negative", funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Ensure the network's data directory exists.
	if err := cfgutil.CheckCreateDir(networkDir(cfg.AppDataDir.Value,
		activeNet.Params)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if err := normalizeChainServer(&cfg); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	if err := normalizeListeners(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
