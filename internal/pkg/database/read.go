package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

// RecentSnapshots returns up to limit recorded snapshots, newest first. The
// returned snapshots carry no history.
func (db *Database) RecentSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	if db == nil || db.pool == nil {
		return nil, ErrNoDatabase
	}
	const query = `
	SELECT s.id, s.generated_at, s.status, s.ambient_temperature, s.ambient_humidity, s.soil_humidity, s.raw_adc,
	       d.device, d.is_on
	FROM (
		SELECT * FROM snapshot
		WHERE node_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	) s
	LEFT JOIN device_state d ON d.snapshot_id = s.id
	ORDER BY s.generated_at DESC, d.device;
	`

	rows, err := db.pool.Query(ctx, query, db.nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]model.Snapshot, error) {
	snapshots := []model.Snapshot{}
	for rows.Next() {
		var (
			snap   model.Snapshot
			status string
			device *string
			isOn   *bool
		)
		if err := rows.Scan(&snap.ID, &snap.GeneratedAt, &status,
			&snap.Reading.AmbientTemperature, &snap.Reading.AmbientHumidity, &snap.Reading.SoilHumidity, &snap.Reading.RawADC,
			&device, &isOn); err != nil {
			return nil, err
		}
		snap.Status = model.ConnectionStatus(status)
		snap.Reading.Timestamp = snap.GeneratedAt

		if n := len(snapshots); n == 0 || snapshots[n-1].ID != snap.ID {
			snapshots = append(snapshots, snap)
		}
		if device != nil && isOn != nil {
			kind := model.DeviceKind(*device)
			last := &snapshots[len(snapshots)-1]
			last.Devices = append(last.Devices, model.DeviceState{Kind: kind, Name: kind.Name(), On: *isOn})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
