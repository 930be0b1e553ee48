// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"safety-rating/internal/common/config"
	"safety-rating/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client owns the Zeebe connection and the job workers opened on it.
type Client struct {
	client         zbc.Client
	requestTimeout time.Duration
	logger         logger.Logger

	mu      sync.Mutex
	workers []worker.JobWorker
}

// NewClient connects to the gateway and verifies it with a topology request.
func NewClient(cfg config.CamundaConfig, log logger.Logger) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client:         zeebeClient,
		requestTimeout: config.GetDuration(cfg.RequestTimeout),
		logger:         log.WithFields(map[string]interface{}{"component": "zeebe-client"}),
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 10 * time.Second
	}

	if err := c.Ping(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Ping sends a topology request; it backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology request failed: %w", err)
	}
	return nil
}
