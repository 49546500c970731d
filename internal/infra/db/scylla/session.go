package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gocql/gocql"

	"parley/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures the chat schema exists and returns a connected session.
func NewSession(cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}

	baseCluster := newCluster(cfg, "")
	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := newCluster(cfg, cfg.ScyllaKeyspace)
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func newCluster(cfg config.Config, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.Consistency = cfg.ScyllaConsistency
	if keyspace != "" {
		cluster.Keyspace = keyspace
	}
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
		cluster.ConnectTimeout = cfg.ScyllaTimeout
	}
	return cluster
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations (
	id text PRIMARY KEY,
	is_group boolean,
	name text,
	member_ids set<text>,
	created_at timestamp,
	last_message_at timestamp
);`, cfg.ScyllaKeyspace),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.direct_conversations (
	direct_key text PRIMARY KEY,
	conversation_id text
);`, cfg.ScyllaKeyspace),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations_by_member (
	member_id text,
	conversation_id text,
	PRIMARY KEY (member_id, conversation_id)
);`, cfg.ScyllaKeyspace),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages (
	conversation_id text,
	created_at timestamp,
	id text,
	sender_id text,
	body text,
	image text,
	seen_by set<text>,
	PRIMARY KEY (conversation_id, created_at, id)
) WITH CLUSTERING ORDER BY (created_at DESC, id ASC);`, cfg.ScyllaKeyspace),
	}
	for _, cql := range statements {
		if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create chat tables: %w", err)
		}
	}
	return nil
}
