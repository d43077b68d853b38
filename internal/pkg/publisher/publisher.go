package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

var ErrAlreadyRegistered = errors.New("publisher already registered")

// Sink receives every snapshot the refresher produces.
type Sink interface {
	Write(ctx context.Context, snap *model.Snapshot) error
	RegisterNode(ctx context.Context, node model.Node) error
}

// Observer is told about each sink failure; the metrics sink implements it.
type Observer interface {
	SinkFailed(name string)
}

type Publisher struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	observer Observer
	logger   *zap.Logger
}

func New() *Publisher {
	return &Publisher{
		sinks:  make(map[string]Sink),
		logger: zap.L(),
	}
}

func (p *Publisher) SetObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = o
}

func (p *Publisher) Register(name string, sink Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sinks[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	p.sinks[name] = sink
	return nil
}

// Names returns the registered sink names in sorted order.
func (p *Publisher) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.sinks))
	for name := range p.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublishSnapshot writes snap to every sink. A failing sink does not stop the
// others; all failures are returned joined.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *model.Snapshot) error {
	return p.each(func(name string, sink Sink) error {
		if err := sink.Write(ctx, snap); err != nil {
			p.logger.Error("failed to publish snapshot", zap.Error(err), zap.String("publisher", name))
			return fmt.Errorf("%s: %w", name, err)
		}
		p.logger.Debug("published snapshot", zap.String("publisher", name), zap.Stringer("snapshot", snap.ID))
		return nil
	})
}

func (p *Publisher) RegisterNode(ctx context.Context, node model.Node) error {
	return p.each(func(name string, sink Sink) error {
		if err := sink.RegisterNode(ctx, node); err != nil {
			p.logger.Error("failed to register node", zap.Error(err), zap.String("publisher", name))
			return fmt.Errorf("%s: %w", name, err)
		}
		p.logger.Debug("registered node", zap.String("node", node.ID), zap.String("publisher", name))
		return nil
	})
}

func (p *Publisher) each(fn func(name string, sink Sink) error) error {
	p.mu.RLock()
	sinks := make(map[string]Sink, len(p.sinks))
	for name, sink := range p.sinks {
		sinks[name] = sink
	}
	observer := p.observer
	p.mu.RUnlock()

	var errs []error
	for name, sink := range sinks {
		if err := fn(name, sink); err != nil {
			errs = append(errs, err)
			if observer != nil {
				observer.SinkFailed(name)
			}
		}
	}
	return errors.Join(errs...)
}
