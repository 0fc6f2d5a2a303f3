package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Im Konfliktfall übernehmen Kalibrierung und Position nur echte Werte:
// ein erneutes Pairing liefert 0/NULL und darf gemessene Fahrzeiten nicht
// überschreiben, ein Import mit Fahrzeiten schon.
const upsertDeviceSQL = `
	INSERT INTO devices (device_id, device_enum, name, open_time, close_time, position)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (device_id)
	DO UPDATE SET
		device_enum = EXCLUDED.device_enum,
		name = EXCLUDED.name,
		open_time = CASE WHEN EXCLUDED.open_time > 0 THEN EXCLUDED.open_time ELSE devices.open_time END,
		close_time = CASE WHEN EXCLUDED.close_time > 0 THEN EXCLUDED.close_time ELSE devices.close_time END,
		position = COALESCE(EXCLUDED.position, devices.position),
		updated_at = NOW()
	RETURNING id, device_id, device_enum, name, open_time, close_time, position, created_at, updated_at
`

// SaveDevice upserts a paired device keyed by its radio sender ID.
// Pairing the same motor again reuses the row and refreshes the enum.
func (p *PostgresClient) SaveDevice(ctx context.Context, device Device) (Device, error) {
	var saved Device
	err := p.pool.QueryRow(ctx, upsertDeviceSQL,
		device.DeviceID, device.DeviceEnum, device.Name,
		device.OpenTime, device.CloseTime, device.Position,
	).Scan(
		&saved.ID, &saved.DeviceID, &saved.DeviceEnum, &saved.Name,
		&saved.OpenTime, &saved.CloseTime, &saved.Position,
		&saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return Device{}, fmt.Errorf("failed to upsert device: %w", err)
	}
	return saved, nil
}

// ListDevices loads all paired devices, oldest first so enum order stays
// stable across restarts.
func (p *PostgresClient) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, device_id, device_enum, name, open_time, close_time, position, created_at, updated_at
		FROM devices
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		var device Device
		err := rows.Scan(
			&device.ID, &device.DeviceID, &device.DeviceEnum, &device.Name,
			&device.OpenTime, &device.CloseTime, &device.Position,
			&device.CreatedAt, &device.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func (p *PostgresClient) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var device Device
	err := p.pool.QueryRow(ctx, `
		SELECT id, device_id, device_enum, name, open_time, close_time, position, created_at, updated_at
		FROM devices
		WHERE device_id = $1
	`, deviceID).Scan(
		&device.ID, &device.DeviceID, &device.DeviceEnum, &device.Name,
		&device.OpenTime, &device.CloseTime, &device.Position,
		&device.CreatedAt, &device.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("device not found")
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// DeleteDevice removes a paired device by its radio sender ID.
func (p *PostgresClient) DeleteDevice(ctx context.Context, deviceID string) error {
	result, err := p.pool.Exec(ctx, `
		DELETE FROM devices
		WHERE device_id = $1
	`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (p *PostgresClient) RenameDevice(ctx context.Context, deviceID, name string) error {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET name = $1, updated_at = NOW() WHERE device_id = $2
	`, name, deviceID)
	if err != nil {
		return fmt.Errorf("failed to rename device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateCalibration stores measured travel times in seconds and resets
// the position snapshot to the closed limit.
func (p *PostgresClient) UpdateCalibration(ctx context.Context, deviceID string, openSeconds, closeSeconds float64) error {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices
		SET open_time = $1, close_time = $2, position = 0, updated_at = NOW()
		WHERE device_id = $3
	`, openSeconds, closeSeconds, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update calibration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdatePosition persists the latest position estimate so restores after
// a restart start from something better than "unknown".
func (p *PostgresClient) UpdatePosition(ctx context.Context, deviceID string, position int) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE devices SET position = $1, updated_at = NOW() WHERE device_id = $2
	`, position, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}
