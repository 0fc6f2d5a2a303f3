package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Das Upsert darf im Konfliktfall keine Datenspalte stillschweigend
// fallenlassen: gemessene Fahrzeiten überleben ein erneutes SaveDevice,
// importierte Fahrzeiten setzen sich durch.
func TestUpsertDeviceConflictBranchCoversAllColumns(t *testing.T) {
	_, conflictBranch, found := strings.Cut(upsertDeviceSQL, "DO UPDATE SET")
	require.True(t, found)

	for _, column := range []string{"device_enum", "name", "open_time", "close_time", "position"} {
		assert.Contains(t, conflictBranch, column+" =",
			"conflict branch must carry %s", column)
	}
}

func TestUpsertDevicePreservesCalibrationOnRePairing(t *testing.T) {
	// Re-Pairing speichert 0/NULL; der CASE-Zweig behält dann den
	// Bestandswert, sonst stünde ein frisch gepaartes Gerät wieder
	// unkalibriert da.
	assert.Contains(t, upsertDeviceSQL,
		"CASE WHEN EXCLUDED.open_time > 0 THEN EXCLUDED.open_time ELSE devices.open_time END")
	assert.Contains(t, upsertDeviceSQL,
		"CASE WHEN EXCLUDED.close_time > 0 THEN EXCLUDED.close_time ELSE devices.close_time END")
	assert.Contains(t, upsertDeviceSQL,
		"COALESCE(EXCLUDED.position, devices.position)")
}
