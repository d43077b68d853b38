package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
	"github.com/anicoll/eco-monitor/pkg/hasher"
	"github.com/anicoll/eco-monitor/pkg/sockets"
)

var (
	ErrDisconnected    = errors.New("dashboard closed the connection")
	ErrMissingPassword = errors.New("usage: eco-monitor hash-password <password>")
)

func WatchCommand(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, c.String("url"), c.String("token"), logger)
}

// watch follows the dashboard websocket and logs every snapshot it pushes.
func watch(ctx context.Context, url, token string, logger *zap.Logger) error {
	opts := []func(*sockets.Conn){
		sockets.WithPingInterval(30 * time.Second),
		sockets.OnMessage(func(data []byte, _ sockets.Connection) {
			var snap model.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				logger.Warn("unexpected message", zap.Error(err))
				return
			}
			fields := []zap.Field{
				zap.Stringer("id", snap.ID),
				zap.String("status", snap.Status.Label()),
				zap.Float64("ambient_temperature_c", snap.Reading.AmbientTemperature),
				zap.Float64("ambient_humidity_pct", snap.Reading.AmbientHumidity),
				zap.Float64("soil_humidity_pct", snap.Reading.SoilHumidity),
				zap.Int("raw_adc", snap.Reading.RawADC),
			}
			for _, d := range snap.Devices {
				fields = append(fields, zap.String(d.Kind.String(), d.Label()))
			}
			logger.Info("snapshot", fields...)
		}),
		sockets.OnError(func(err error) {
			logger.Warn("websocket error", zap.Error(err))
		}),
	}
	if token != "" {
		opts = append(opts, sockets.WithHeader("Authorization", "Bearer "+token))
	}

	conn := sockets.New(opts...)
	if err := conn.Dial(ctx, url); err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	logger.Info("watching dashboard", zap.String("url", url))

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return ErrDisconnected
	}
}

func HashPasswordCommand(c *cli.Context) error {
	password := c.Args().First()
	if password == "" {
		return ErrMissingPassword
	}
	hash, err := hasher.HashPassword([]byte(password))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, hash)
	return err
}
