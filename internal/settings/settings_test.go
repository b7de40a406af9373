package settings

import (
	"testing"

	"membership-sync/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestStaticDefaults(t *testing.T) {
	s := NewStatic(nil)

	assert.True(t, s.Bool(KeySyncEnabled, true))
	assert.Equal(t, DefaultRetryCeiling, s.Int(KeyRetryCeiling, DefaultRetryCeiling))
	assert.Equal(t, DefaultNotifyGateways, s.Strings(KeyNotifyGateways, DefaultNotifyGateways))
}

func TestStaticParsesStrings(t *testing.T) {
	s := NewStatic(map[string]interface{}{
		KeySyncEnabled:    "false",
		KeyRetryCeiling:   " 5 ",
		KeyNotifyGateways: "paypal, braintree,,",
	})

	assert.False(t, s.Bool(KeySyncEnabled, true))
	assert.Equal(t, 5, s.Int(KeyRetryCeiling, 3))
	assert.Equal(t, []string{"paypal", "braintree"}, s.Strings(KeyNotifyGateways, nil))
}

func TestStaticFallsBackOnGarbage(t *testing.T) {
	s := NewStatic(map[string]interface{}{
		KeySyncEnabled:     "maybe",
		KeyRetryCeiling:    "three",
		KeyGracePeriodDays: struct{}{},
	})

	assert.True(t, s.Bool(KeySyncEnabled, true))
	assert.Equal(t, 3, s.Int(KeyRetryCeiling, 3))
	assert.Equal(t, 4, s.Int(KeyGracePeriodDays, 4))
}

func TestStaticSetOverrides(t *testing.T) {
	s := NewStatic(map[string]interface{}{KeyGracePeriodEnabled: false})
	s.Set(KeyGracePeriodEnabled, true)
	assert.True(t, s.Bool(KeyGracePeriodEnabled, false))
}

func TestFromConfig(t *testing.T) {
	s := FromConfig(config.Sync{
		Enabled:             true,
		MaintainLevelOnHold: false,
		GracePeriodEnabled:  true,
		GracePeriodDays:     7,
		RetryCeiling:        2,
		RetryDelayDays:      1,
		NotifyGateways:      []string{"pagbank"},
	})

	assert.True(t, s.Bool(KeySyncEnabled, false))
	assert.False(t, s.Bool(KeyMaintainLevelOnHold, true))
	assert.True(t, s.Bool(KeyGracePeriodEnabled, false))
	assert.Equal(t, 7, s.Int(KeyGracePeriodDays, 0))
	assert.Equal(t, 2, s.Int(KeyRetryCeiling, 0))
	assert.Equal(t, 1, s.Int(KeyRetryDelayDays, 0))
	assert.Equal(t, []string{"pagbank"}, s.Strings(KeyNotifyGateways, nil))
}
