package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	discoveryPrefix = "homeassistant/sensor"
	manufacturer    = "Espressif"
)

// Write publishes every value of the snapshot that changed since the last
// write to its state topic.
func (s *service) Write(ctx context.Context, snap *model.Snapshot) error {
	count := 0
	for _, v := range snap.Values() {
		if !s.shouldUpdate(v.Slug, v.Value) {
			continue
		}
		if err := s.publishValue(v); err != nil {
			// let the next snapshot retry this value
			s.lastValues.Delete(v.Slug)
			return err
		}
		count++
	}
	s.logger.Debug("updated sensors", zap.Int("count", count))
	return nil
}

// RegisterNode publishes a retained HomeAssistant discovery config for each
// sensor of the node. Repeated calls for the same node are no-ops.
func (s *service) RegisterNode(ctx context.Context, node model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registered[node.ID]; exists {
		return nil
	}
	nodeID := identifier(node)

	for _, v := range (&model.Snapshot{Devices: defaultDevices()}).Values() {
		msg := registerMsg(node, v)
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%s_%s/config", discoveryPrefix, nodeID, v.Slug)
		if err := wait(s.client.Publish(topic, 1, true, payload), publishTimeout); err != nil {
			return err
		}
	}
	s.registered[node.ID] = struct{}{}
	s.logger.Info("registered node with homeassistant", zap.String("node", nodeID))
	return nil
}

func (s *service) publishValue(v model.SensorValue) error {
	topic := stateTopic(s.nodeID, v.Slug)
	payload := map[string]string{
		"value": v.Value,
	}
	if !model.TextSensors.HasSlug(v.Slug) {
		payload["unit_of_measurement"] = v.Unit.String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return wait(s.client.Publish(topic, 0, false, data), publishTimeout)
}

func (s *service) shouldUpdate(slug, newValue string) bool {
	oldValue, exists := s.lastValues.Load(slug)
	if exists && strings.EqualFold(newValue, oldValue.(string)) {
		return false
	}
	s.lastValues.Store(slug, newValue)
	return true
}

func identifier(node model.Node) string {
	return strings.ReplaceAll(slug.Make(node.ID), "-", "_")
}

func stateTopic(nodeID, valueSlug string) string {
	return fmt.Sprintf("%s/%s/%s/state", discoveryPrefix, nodeID, valueSlug)
}

func defaultDevices() []model.DeviceState {
	devices := make([]model.DeviceState, 0, len(model.DeviceKinds))
	for _, k := range model.DeviceKinds {
		devices = append(devices, model.DeviceState{Kind: k, Name: k.Name()})
	}
	return devices
}

func registerMsg(node model.Node, v model.SensorValue) model.RegisterMessage {
	return model.RegisterMessage{
		Tilda:             fmt.Sprintf("%s/%s/%s", discoveryPrefix, identifier(node), v.Slug),
		Name:              v.Name,
		ID:                fmt.Sprintf("%s_%s", identifier(node), v.Slug),
		StateTopic:        "~/state",
		ValueTemplate:     "{{ value_json.value }}",
		UnitOfMeasurement: v.Unit.String(),
		Device: model.RegisterDevice{
			Name:         node.Name,
			Identifiers:  []string{identifier(node)},
			Model:        node.Model,
			Manufacturer: manufacturer,
		},
	}
}
