package db

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pipetrail/pipetrail/internal/config"
	"github.com/pipetrail/pipetrail/internal/logger"
)

// InitNeo4j builds the shared bolt driver. The driver owns the connection
// pool; connections are never held across request boundaries.
func InitNeo4j(cfg config.Neo4jConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = 5 * time.Minute
			c.MaxConnectionPoolSize = 50
			c.ConnectionAcquisitionTimeout = 10 * time.Second
		},
	)
	if err != nil {
		return nil, err
	}
	logger.Infof("Neo4j driver initialized for %s", cfg.URI)
	return driver, nil
}

// CloseNeo4j shuts the driver down, draining the pool.
func CloseNeo4j(driver neo4j.DriverWithContext) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.Close(ctx); err != nil {
		logger.Warnf("closing Neo4j driver: %v", err)
	}
}
