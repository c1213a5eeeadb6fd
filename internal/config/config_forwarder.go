package config

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/and161185/mdm-forwarder/internal/errs"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps a decompressed ingest batch.
const DefaultMaxBodyBytes = 32 << 20

// ForwarderConfig holds the configuration settings for the forwarder.
type ForwarderConfig struct {
	Addr            string // Ingest HTTP address
	Account         string // MDM account handles are created under
	MdmAddr         string // MDM agent base URL; empty disables the HTTP sink
	DatabaseDsn     string // PostgreSQL sink DSN; takes precedence over MdmAddr
	Key             string // Key for request hash verification
	TrustedSubnet   string // CIDR ingest requests must come from; empty allows all
	MaxBodyBytes    int    // Cap on a decompressed /records body
	ClientTimeout   int    // MDM agent request timeout (in seconds)
	LogLevel        string
	BackendLogLevel string // Verbosity of the metric sink's own logging
	LogFile         string

	Logger        *zap.SugaredLogger
	BackendLogger *zap.SugaredLogger
}

// NewForwarderConfig creates a ForwarderConfig from flags, an optional JSON
// file and environment variables, in increasing priority except that flags
// given explicitly beat the JSON file.
func NewForwarderConfig() *ForwarderConfig {
	cfg := &ForwarderConfig{}

	fAddr := strFlag("localhost:8080")
	fAccount := strFlag("")
	fMdm := strFlag("")
	fDSN := strFlag("")
	fKey := strFlag("")
	fTrusted := strFlag("")
	fMaxBody := intFlag(DefaultMaxBodyBytes)
	fTO := intFlag(10)
	fLevel := strFlag("info")
	fBackendLevel := strFlag("warn")
	fLogFile := strFlag("")
	fConf := strFlag("")

	flag.Var(fAddr, "a", "ingest HTTP address")
	flag.Var(fAccount, "account", "MDM account")
	flag.Var(fMdm, "m", "MDM agent address (must include http(s)://)")
	flag.Var(fDSN, "d", "DB connection string")
	flag.Var(fKey, "k", "Hash key string")
	flag.Var(fTrusted, "trusted-subnet", "trusted agent subnet (CIDR)")
	flag.Var(fMaxBody, "max-body", "max /records body size (bytes)")
	flag.Var(fTO, "t", "MDM agent timeout (seconds)")
	flag.Var(fLevel, "log-level", "log level")
	flag.Var(fBackendLevel, "backend-log-level", "metric sink log level")
	flag.Var(fLogFile, "log-file", "additional log file")
	flag.Var(fConf, "c", "Path to JSON config file")
	flag.Var(fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.Addr = fAddr.v
	cfg.Account = fAccount.v
	cfg.MdmAddr = fMdm.v
	cfg.DatabaseDsn = fDSN.v
	cfg.Key = fKey.v
	cfg.TrustedSubnet = fTrusted.v
	cfg.MaxBodyBytes = fMaxBody.v
	cfg.ClientTimeout = fTO.v
	cfg.LogLevel = fLevel.v
	cfg.BackendLogLevel = fBackendLevel.v
	cfg.LogFile = fLogFile.v

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		if js, err := loadJSON[forwarderJSON](fConf.v); err == nil {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.Account != nil && !fAccount.set {
				cfg.Account = *js.Account
			}
			if js.MdmAddress != nil && !fMdm.set {
				cfg.MdmAddr = *js.MdmAddress
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.TrustedSubnet != nil && !fTrusted.set {
				cfg.TrustedSubnet = *js.TrustedSubnet
			}
			if js.MaxBodyBytes != nil && !fMaxBody.set {
				cfg.MaxBodyBytes = *js.MaxBodyBytes
			}
			if js.ClientTimeout != nil && !fTO.set {
				if sec, err := parseDurationSeconds(*js.ClientTimeout); err == nil {
					cfg.ClientTimeout = sec
				}
			}
			if js.LogLevel != nil && !fLevel.set {
				cfg.LogLevel = *js.LogLevel
			}
			if js.BackendLogLevel != nil && !fBackendLevel.set {
				cfg.BackendLogLevel = *js.BackendLogLevel
			}
		} else {
			log.Printf("failed to load config %s: %v", fConf.v, err)
		}
	}

	readForwarderEnvironment(cfg)

	cfg.MdmAddr = normalizeURL(cfg.MdmAddr)

	cfg.Logger = mustLogger(cfg.LogLevel, cfg.LogFile)
	cfg.BackendLogger = mustLogger(cfg.BackendLogLevel, cfg.LogFile).Named("mdm")
	return cfg
}

// Validate reports settings the forwarder cannot start without.
func (cfg *ForwarderConfig) Validate() error {
	if cfg.Account == "" {
		return errs.ErrMissingAccount
	}
	if cfg.ClientTimeout <= 0 {
		return fmt.Errorf("client timeout must be positive, got %d", cfg.ClientTimeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body size must be positive, got %d", cfg.MaxBodyBytes)
	}
	if cfg.TrustedSubnet != "" {
		if _, _, err := net.ParseCIDR(cfg.TrustedSubnet); err != nil {
			return fmt.Errorf("invalid trusted subnet: %w", err)
		}
	}
	return nil
}

func readForwarderEnvironment(cfg *ForwarderConfig) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}

	if account := os.Getenv("MDM_ACCOUNT"); account != "" {
		cfg.Account = account
	}

	if mdmAddr := os.Getenv("MDM_ADDRESS"); mdmAddr != "" {
		cfg.MdmAddr = mdmAddr
	}

	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}

	if subnet := os.Getenv("TRUSTED_SUBNET"); subnet != "" {
		cfg.TrustedSubnet = subnet
	}

	if maxBody := os.Getenv("MAX_BODY_BYTES"); maxBody != "" {
		v, err := strconv.Atoi(maxBody)
		if err == nil {
			cfg.MaxBodyBytes = v
		} else {
			log.Printf("invalid MAX_BODY_BYTES env var: %v", err)
		}
	}

	if timeoutEnv := os.Getenv("CLIENT_TIMEOUT"); timeoutEnv != "" {
		v, err := strconv.Atoi(timeoutEnv)
		if err == nil {
			cfg.ClientTimeout = v
		} else {
			log.Printf("invalid CLIENT_TIMEOUT env var: %v", err)
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if level := os.Getenv("BACKEND_LOG_LEVEL"); level != "" {
		cfg.BackendLogLevel = level
	}

	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.LogFile = file
	}
}

func mustLogger(level, file string) *zap.SugaredLogger {
	logger, err := NewLogger(level, file)
	if err == nil {
		return logger
	}

	log.Printf("invalid log level %q, using info: %v", level, err)
	logger, err = NewLogger("info", file)
	if err != nil {
		panic(err)
	}
	return logger
}
