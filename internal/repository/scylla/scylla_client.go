package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/util"
)

// PreparedStatements holds the statements the user repository binds.
type PreparedStatements struct {
	CreateUser      *gocql.Query
	GetUserByName   *gocql.Query
	UpdateLastLogin *gocql.Query
	BanUser         *gocql.Query
	UnbanUser       *gocql.Query
}

type ScyllaClient struct {
	Session  *gocql.Session
	Prepared *PreparedStatements
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}
	if scyllaConfig.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Scylla session: %w", err)
	}

	client := &ScyllaClient{Session: session}
	client.prepareStatements()

	util.Info("Scylla client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (c *ScyllaClient) prepareStatements() {
	c.Prepared = &PreparedStatements{
		CreateUser: c.Session.Query(`
			INSERT INTO users_by_username
			(username, email, password_hash, is_admin, is_banned,
			 potentially_dangerous, banned_reason, banned_at, created_at, last_login)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`),
		GetUserByName: c.Session.Query(`
			SELECT username, email, password_hash, is_admin, is_banned,
			       potentially_dangerous, banned_reason, banned_at, created_at, last_login
			FROM users_by_username WHERE username = ?`),
		UpdateLastLogin: c.Session.Query(`
			UPDATE users_by_username SET last_login = ? WHERE username = ?`),
		BanUser: c.Session.Query(`
			UPDATE users_by_username
			SET is_banned = true, banned_reason = ?, banned_at = ? WHERE username = ?`),
		UnbanUser: c.Session.Query(`
			UPDATE users_by_username
			SET is_banned = false, banned_reason = '', banned_at = null WHERE username = ?`),
	}
}

func (c *ScyllaClient) HealthCheck() error {
	var release string
	if err := c.Session.Query("SELECT release_version FROM system.local").Scan(&release); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (c *ScyllaClient) Close() {
	if c.Session != nil {
		c.Session.Close()
		util.Info("Scylla session closed")
	}
}
