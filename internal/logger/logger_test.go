package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"membership-sync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessIsTaggedInfo(t *testing.T) {
	var buf bytes.Buffer
	log := FromSlog(New(config.Log{Level: "info", Format: "json"}, &buf))

	log.Success("membership level granted", map[string]interface{}{"user_id": "u1", "level_id": 5})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "membership level granted", entry["msg"])
	assert.Equal(t, "success", entry["outcome"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.EqualValues(t, 5, entry["level_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := FromSlog(New(config.Log{Level: "warning", Format: "text"}, &buf))

	log.Debug("debug", nil)
	log.Info("info", nil)
	log.Warning("careful", map[string]interface{}{"kind": "not found"})
	log.Error("broken", nil)

	out := buf.String()
	assert.NotContains(t, out, "msg=info")
	assert.NotContains(t, out, "msg=debug")
	assert.Contains(t, out, "msg=careful")
	assert.Contains(t, out, `kind="not found"`)
	assert.Contains(t, out, "msg=broken")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("dropped", map[string]interface{}{"a": 1})
	})
}
