// Package elastic implements the Elasticsearch storage sink: node-pool
// failover, index-template bootstrap, resume-position lookup and bucketed
// bulk writes.
package elastic

import (
	"context"
	"fmt"
	"time"

	"el-shipper/internal/config"
	"el-shipper/internal/eventlog"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

// Store persists batches of event-log records into Elasticsearch and reports
// the position the upstream reader should resume from.
//
// A Store is not safe for concurrent use: failover replaces the active
// client without locking, so callers must invoke ReadResumePosition and
// Write sequentially (the shipper's single loop does exactly that).
type Store[T eventlog.Item] struct {
	nodes        []config.Node
	index        string
	separation   Separation
	maxRetries   int
	retryTimeout time.Duration

	// active indexes nodes; -1 until the first successful connect. The
	// client is always rebuilt together with active, never patched.
	active int
	client *elasticsearch.Client
}

// NewStore validates the configuration and builds a disconnected store. No
// network I/O happens until the first ReadResumePosition or Write call.
//
// Zero MaxRetries and RetryTimeoutSeconds select the documented defaults
// (2 attempts, 30s), so the store behaves the same whether the config came
// through config.Load or was constructed directly.
func NewStore[T eventlog.Item](cfg config.Elasticsearch) (*Store[T], error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("invalid elasticsearch config: %w", ErrNoNodes)
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("invalid elasticsearch config: %w", ErrEmptyIndex)
	}
	sep, err := ParseSeparation(cfg.Separation)
	if err != nil {
		return nil, fmt.Errorf("invalid elasticsearch config: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	retryTimeout := time.Duration(cfg.RetryTimeoutSeconds) * time.Second
	if retryTimeout == 0 {
		retryTimeout = 30 * time.Second
	}

	return &Store[T]{
		nodes:        cfg.Nodes,
		index:        cfg.Index,
		separation:   sep,
		maxRetries:   maxRetries,
		retryTimeout: retryTimeout,
		active:       -1,
	}, nil
}

// Index returns the base index name records are shipped under.
func (s *Store[T]) Index() string { return s.index }

// ensureConnected connects lazily on the first use of the store.
func (s *Store[T]) ensureConnected(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	return s.connect(ctx)
}

// connect cycles through the node pool starting right after the currently
// active node, probing each candidate with a ping. The loop has no attempt
// bound: it keeps walking the pool until a node answers or the context is
// cancelled. Once a node is selected the index template is ensured before
// control returns, so callers never write against an unbootstrapped backend.
func (s *Store[T]) connect(ctx context.Context) error {
	next := s.active
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next = (next + 1) % len(s.nodes)
		node := s.nodes[next]

		client, err := s.newClient(node)
		if err != nil {
			logrus.Warnf("Failed to build client | node=%s err=%v", node.Host, err)
			continue
		}

		if err := s.ping(ctx, client); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.Warnf("Node unreachable | node=%s err=%v", node.Host, err)
			continue
		}

		s.active = next
		s.client = client
		logrus.Infof("Connected | node=%s index=%s", node.Host, s.index)

		if err := s.ensureTemplate(ctx); err != nil {
			// Schema state is unknown; drop the connection so a later
			// call starts from a clean connect.
			s.client = nil
			return err
		}
		return nil
	}
}

// newClient builds a fresh client bound to a single node, with request-body
// compression and the configured retry parameters.
func (s *Store[T]) newClient(node config.Node) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses:           []string{node.Host},
		CompressRequestBody: true,
		MaxRetries:          s.maxRetries,
		RetryBackoff: func(attempt int) time.Duration {
			d := time.Duration(attempt) * time.Second
			if d > s.retryTimeout {
				d = s.retryTimeout
			}
			return d
		},
	}

	switch node.Auth {
	case config.AuthBasic:
		cfg.Username = node.User
		cfg.Password = node.Password
	case config.AuthAPIKey:
		cfg.APIKey = node.APIKey
	}

	return elasticsearch.NewClient(cfg)
}

func (s *Store[T]) ping(ctx context.Context, client *elasticsearch.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping returned %s", res.Status())
	}
	return nil
}

// activeHost is used in log lines; safe to call before the first connect.
func (s *Store[T]) activeHost() string {
	if s.active < 0 {
		return "<none>"
	}
	return s.nodes[s.active].Host
}
