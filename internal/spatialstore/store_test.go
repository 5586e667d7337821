package spatialstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAlertWhereNoFilter(t *testing.T) {
	where, args := buildAlertWhere(AlertFilter{})
	assert.Equal(t, "", where)
	assert.Empty(t, args)
}

func TestBuildAlertWhereVehicleOnly(t *testing.T) {
	where, args := buildAlertWhere(AlertFilter{VehicleID: "AUV-1"})
	assert.Equal(t, "WHERE auv_id = $1", where)
	assert.Equal(t, []any{"AUV-1"}, args)
}

func TestBuildAlertWhereVehicleAndKind(t *testing.T) {
	where, args := buildAlertWhere(AlertFilter{VehicleID: "AUV-1", Kind: "dead_auv"})
	assert.Equal(t, "WHERE auv_id = $1 AND type = $2", where)
	assert.Equal(t, []any{"AUV-1", "dead_auv"}, args)
}

func TestBuildAlertWhereKindOnly(t *testing.T) {
	where, args := buildAlertWhere(AlertFilter{Kind: "zone_violation"})
	assert.Equal(t, "WHERE type = $1", where)
	assert.Equal(t, []any{"zone_violation"}, args)
}
