package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory storing the vault db
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey selects the chain parameters: mainnet, testnet or regtest
	NetworkKey = "NETWORK"
	// UnusedPoolSizeKey is the default lookahead pool size of new accounts
	UnusedPoolSizeKey = "UNUSED_POOL_SIZE"

	// DbLocation is the vault db directory under the datadir
	DbLocation = "db"
)

var vip *viper.Viper

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("COINVAULT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir())
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(NetworkKey, "mainnet")
	vip.SetDefault(UnusedPoolSizeKey, 25)

	if err := initDatadir(); err != nil {
		log.WithError(err).Panic("error while creating datadir")
	}
}

// GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

// GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetDbDir returns the vault db directory under the configured datadir.
func GetDbDir() string {
	return filepath.Join(GetString(DatadirKey), DbLocation)
}

// GetNetwork maps the configured network name to chain parameters.
func GetNetwork() (*chaincfg.Params, error) {
	switch network := GetString(NetworkKey); network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network '%s'", network)
	}
}

func initDatadir() error {
	datadir := GetString(DatadirKey)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coinvaultd"
	}
	return filepath.Join(home, ".coinvaultd")
}
