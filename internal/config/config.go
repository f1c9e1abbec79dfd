package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Auth modes supported for a backend node. Basic auth requires user and
// password, api-key auth requires the encoded key; "none" sends no
// credentials at all (typical for a cluster on a private network).
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthAPIKey = "api-key"
)

// Separation values accepted in the config file. They control how written
// records are split across logical indices (see elastic.ParseSeparation).
var separationValues = map[string]struct{}{
	"hour": {}, "day": {}, "month": {}, "none": {},
}

// Node describes one Elasticsearch endpoint in the pool. The pool order is
// significant: failover walks it round-robin.
type Node struct {
	Host     string `yaml:"host"`
	Auth     string `yaml:"auth"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
}

type Elasticsearch struct {
	Nodes []Node `yaml:"nodes"`
	// Index is the base name of the logical indices; records end up in
	// "{index}-{bucketKey}".
	Index string `yaml:"index"`
	// Separation selects the time granularity of the bucket key:
	// hour (default), day, month or none.
	Separation string `yaml:"separation"`
	// MaxRetries is handed to the client for per-request retries.
	// 0 selects the default of 2.
	MaxRetries int `yaml:"max_retries"`
	// RetryTimeoutSeconds bounds the wait before retrying when failover
	// keeps landing on the same (only) node. 0 selects the default of 30.
	RetryTimeoutSeconds int `yaml:"retry_timeout_seconds"`
}

type Reader struct {
	// JournalDir is scanned for *.jsonl / *.jsonl.gz journal files.
	JournalDir string `yaml:"journal_dir"`
	// BatchSize is how many records are shipped per Write call.
	BatchSize int `yaml:"batch_size"`
}

type Config struct {
	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
	Reader        Reader        `yaml:"reader"`
}

// Load reads and unmarshals the configuration file located at the given path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	es := &cfg.Elasticsearch

	// Basic validation
	if len(es.Nodes) == 0 {
		return nil, fmt.Errorf("at least one elasticsearch node must be defined")
	}
	if es.Index == "" {
		return nil, fmt.Errorf("elasticsearch.index is required")
	}

	for i := range es.Nodes {
		n := &es.Nodes[i]
		if n.Host == "" {
			return nil, fmt.Errorf("node at index %d is missing host", i)
		}
		if n.Auth == "" {
			n.Auth = AuthNone
		}
		switch n.Auth {
		case AuthNone:
		case AuthBasic:
			if n.User == "" {
				return nil, fmt.Errorf("node '%s' uses basic auth but has no user", n.Host)
			}
		case AuthAPIKey:
			if n.APIKey == "" {
				return nil, fmt.Errorf("node '%s' uses api-key auth but has no api_key", n.Host)
			}
		default:
			return nil, fmt.Errorf("unsupported auth mode '%s' for node '%s'", n.Auth, n.Host)
		}
	}

	// Default separation is hourly; anything else must be a known value.
	if es.Separation == "" {
		es.Separation = "hour"
	}
	es.Separation = strings.ToLower(es.Separation)
	if _, ok := separationValues[es.Separation]; !ok {
		return nil, fmt.Errorf("unsupported separation '%s'", es.Separation)
	}

	// Default retry values if not set
	if es.MaxRetries == 0 {
		es.MaxRetries = 2
	}
	if es.RetryTimeoutSeconds == 0 {
		es.RetryTimeoutSeconds = 30
	}

	if cfg.Reader.BatchSize == 0 {
		cfg.Reader.BatchSize = 1_000
	}

	return &cfg, nil
}
