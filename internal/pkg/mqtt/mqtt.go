package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/config"
	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 10 * time.Second
	maxRetries     = 5
)

var ErrTimeout = errors.New("mqtt operation timed out")

type service struct {
	client paho_mqtt.Client
	logger *zap.Logger
	nodeID string

	mu         sync.Mutex
	registered map[string]struct{}
	lastValues sync.Map
}

func New(client paho_mqtt.Client, node model.Node) *service {
	return &service{
		client:     client,
		logger:     zap.L(),
		nodeID:     identifier(node),
		registered: make(map[string]struct{}),
	}
}

// NewClient builds a paho client for the configured broker.
func NewClient(cfg *config.MqttConfig) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions()
	opts.AddBroker(cfg.Host)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	return paho_mqtt.NewClient(opts)
}

// Connect connects to the broker, retrying with exponential backoff.
func (s *service) Connect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		err := wait(s.client.Connect(), connectTimeout)
		if err != nil {
			s.logger.Warn("failed to connect to mqtt broker", zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries-1), ctx))
}

func (s *service) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

func wait(token paho_mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return token.Error()
}
