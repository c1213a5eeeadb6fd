package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
)

// AgentConfig holds the configuration settings for the agent.
type AgentConfig struct {
	ServerAddr     string // Forwarder address
	ReportInterval int    // Interval for sending records (in seconds)
	PollInterval   int    // Interval for collecting counters (in seconds)
	ClientTimeout  int    // HTTP client timeout (in seconds)
	Key            string // Key for hash generation
	Host           string // Value of the Host field in produced records
	BatchSize      int    // Max records kept while the forwarder is unreachable
	LogLevel       string
}

// NewAgentConfig creates and returns a new AgentConfig by parsing flags and environment variables.
func NewAgentConfig() *AgentConfig {
	hostname, _ := os.Hostname()
	cfg := &AgentConfig{}

	fAddr := strFlag("http://localhost:8080")
	fRep := intFlag(10)
	fPoll := intFlag(2)
	fTO := intFlag(10)
	fKey := strFlag("")
	fHost := strFlag(hostname)
	fBatch := intFlag(100)
	fLevel := strFlag("info")
	fConf := strFlag("")

	flag.Var(fAddr, "a", "forwarder address (must include http(s)://)")
	flag.Var(fRep, "r", "report interval (seconds)")
	flag.Var(fPoll, "p", "poll interval (seconds)")
	flag.Var(fTO, "t", "client timeout (seconds)")
	flag.Var(fKey, "k", "Hash key string")
	flag.Var(fHost, "host", "host name reported in records")
	flag.Var(fBatch, "b", "max buffered records")
	flag.Var(fLevel, "log-level", "log level")
	flag.Var(fConf, "c", "Path to JSON config file")
	flag.Var(fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.ServerAddr = fAddr.v
	cfg.ReportInterval = fRep.v
	cfg.PollInterval = fPoll.v
	cfg.ClientTimeout = fTO.v
	cfg.Key = fKey.v
	cfg.Host = fHost.v
	cfg.BatchSize = fBatch.v
	cfg.LogLevel = fLevel.v

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		if js, err := loadJSON[agentJSON](fConf.v); err == nil {
			if js.Address != nil && !fAddr.set {
				cfg.ServerAddr = *js.Address
			}
			if js.ReportInterval != nil && !fRep.set {
				if sec, err := parseDurationSeconds(*js.ReportInterval); err == nil {
					cfg.ReportInterval = sec
				}
			}
			if js.PollInterval != nil && !fPoll.set {
				if sec, err := parseDurationSeconds(*js.PollInterval); err == nil {
					cfg.PollInterval = sec
				}
			}
			if js.Host != nil && !fHost.set {
				cfg.Host = *js.Host
			}
			if js.BatchSize != nil && !fBatch.set {
				cfg.BatchSize = *js.BatchSize
			}
		} else {
			log.Printf("failed to load config %s: %v", fConf.v, err)
		}
	}

	readAgentEnvironment(cfg)

	cfg.ServerAddr = normalizeURL(cfg.ServerAddr)
	return cfg
}

func readAgentEnvironment(cfg *AgentConfig) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.ServerAddr = addr
	}

	reportIntervalEnv := os.Getenv("REPORT_INTERVAL")
	if reportIntervalEnv != "" {
		v, err := strconv.Atoi(reportIntervalEnv)
		if err == nil {
			cfg.ReportInterval = v
		} else {
			log.Printf("invalid REPORT_INTERVAL env var: %v", err)
		}
	}

	pollIntervalEnv := os.Getenv("POLL_INTERVAL")
	if pollIntervalEnv != "" {
		v, err := strconv.Atoi(pollIntervalEnv)
		if err == nil {
			cfg.PollInterval = v
		} else {
			log.Printf("invalid POLL_INTERVAL env var: %v", err)
		}
	}

	if batch := os.Getenv("BATCH_SIZE"); batch != "" {
		if i, err := strconv.Atoi(batch); err == nil {
			cfg.BatchSize = i
		}
	}

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}

	if host := os.Getenv("HOST_NAME"); host != "" {
		cfg.Host = host
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

func normalizeURL(addr string) string {
	if addr == "" || strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}
