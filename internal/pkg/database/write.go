package database

import (
	"context"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

// Write records the snapshot's current reading and device states. The
// generated history is not stored.
func (db *Database) Write(ctx context.Context, snap *model.Snapshot) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO snapshot (id, node_id, generated_at, status, ambient_temperature, ambient_humidity, soil_humidity, raw_adc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, snap.ID, db.nodeID, snap.GeneratedAt, snap.Status.String(),
		snap.Reading.AmbientTemperature, snap.Reading.AmbientHumidity, snap.Reading.SoilHumidity, snap.Reading.RawADC); err != nil {
		return err
	}

	for _, d := range snap.Devices {
		if _, err := tx.Exec(ctx, `
			INSERT INTO device_state (snapshot_id, device, is_on)
			VALUES ($1, $2, $3)
		`, snap.ID, d.Kind.String(), d.On); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (db *Database) RegisterNode(ctx context.Context, node model.Node) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO node (id, model, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET model = EXCLUDED.model, name = EXCLUDED.name;`, node.ID, node.Model, node.Name)
	return err
}
