package client

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/models"
	"review-auth/internal/util"
)

// ClickHouseClient is the analytics sink for security events.
type ClickHouseClient struct {
	conn driver.Conn
}

func NewClickHouseClient(cfg *config.Config) (*ClickHouseClient, error) {
	chConfig := cfg.Clickhouse

	conn, err := ch.Open(&ch.Options{
		Addr: []string{chConfig.URL},
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      30 * time.Second,
		MaxOpenConns:     20,
		MaxIdleConns:     10,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	util.Info("ClickHouse client initialized",
		zap.String("database", chConfig.Database))
	return &ClickHouseClient{conn: conn}, nil
}

// InsertSecurityEvents appends a batch of events to the analytics table.
func (c *ClickHouseClient) InsertSecurityEvents(ctx context.Context, events []models.SecurityEvent) error {
	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO security_events
		(event_bucket, event_time, event_date, event_type, username,
		 session_id, ip_address, user_agent, path, details)`)
	if err != nil {
		return fmt.Errorf("failed to prepare security event batch: %w", err)
	}

	for _, ev := range events {
		if err := batch.Append(
			int32(ev.EventBucket), ev.EventTime, ev.EventDate, ev.EventType, ev.Username,
			ev.SessionID, ev.IPAddress, ev.UserAgent, ev.Path, ev.Details,
		); err != nil {
			return fmt.Errorf("failed to append security event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send security event batch: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping failed: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		util.Error("failed to close ClickHouse client", zap.Error(err))
		return err
	}
	util.Info("ClickHouse client closed")
	return nil
}
