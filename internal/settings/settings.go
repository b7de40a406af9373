package settings

import (
	"strconv"
	"strings"
	"sync"

	"membership-sync/internal/config"
)

const (
	KeySyncEnabled         = "sync_enabled"
	KeyMaintainLevelOnHold = "maintain_level_on_hold"
	KeyGracePeriodEnabled  = "grace_period_enabled"
	KeyGracePeriodDays     = "grace_period_days"
	KeyRetryCeiling        = "retry_ceiling"
	KeyRetryDelayDays      = "retry_delay_days"
	KeyNotifyGateways      = "notify_gateways"
)

// Defaults used when a key is missing from the provider.
const (
	DefaultRetryCeiling    = 3
	DefaultRetryDelayDays  = 2
	DefaultGracePeriodDays = 3
)

var DefaultNotifyGateways = []string{"pagbank", "paypal", "braintree"}

// Provider is the read side of the settings collaborator.
type Provider interface {
	Bool(key string, def bool) bool
	Int(key string, def int) int
	Strings(key string, def []string) []string
}

// Static is an in-memory Provider. Values may be typed or strings, so entries
// loaded from env or a settings table work the same way.
type Static struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func NewStatic(values map[string]interface{}) *Static {
	s := &Static{values: make(map[string]interface{}, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// FromConfig seeds a Static provider with the SYNC_* configuration.
func FromConfig(cfg config.Sync) *Static {
	return NewStatic(map[string]interface{}{
		KeySyncEnabled:         cfg.Enabled,
		KeyMaintainLevelOnHold: cfg.MaintainLevelOnHold,
		KeyGracePeriodEnabled:  cfg.GracePeriodEnabled,
		KeyGracePeriodDays:     cfg.GracePeriodDays,
		KeyRetryCeiling:        cfg.RetryCeiling,
		KeyRetryDelayDays:      cfg.RetryDelayDays,
		KeyNotifyGateways:      cfg.NotifyGateways,
	})
}

func (s *Static) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Static) get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Static) Bool(key string, def bool) bool {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return b
	}
	return def
}

func (s *Static) Int(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	}
	return def
}

func (s *Static) Strings(key string, def []string) []string {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return def
}
