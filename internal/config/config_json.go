package config

import (
	"encoding/json"
	"os"
	"time"
)

type forwarderJSON struct {
	Address         *string `json:"address"`
	Account         *string `json:"account"`
	MdmAddress      *string `json:"mdm_address"`
	DatabaseDSN     *string `json:"database_dsn"`
	TrustedSubnet   *string `json:"trusted_subnet"`
	MaxBodyBytes    *int    `json:"max_body_bytes"`
	ClientTimeout   *string `json:"client_timeout"` // "10s"
	LogLevel        *string `json:"log_level"`
	BackendLogLevel *string `json:"backend_log_level"`
}

type agentJSON struct {
	Address        *string `json:"address"`
	ReportInterval *string `json:"report_interval"`
	PollInterval   *string `json:"poll_interval"`
	Host           *string `json:"host"`
	BatchSize      *int    `json:"batch_size"`
}

func loadJSON[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg T
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
