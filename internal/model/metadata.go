package model

import (
	"encoding/json"
	"math"
	"strconv"

	"gorm.io/datatypes"
)

// Metadata keys carrying the cross-system linkage.
const (
	MetaLinkedLevelID               = "linked_membership_level_id"
	MetaRetryAttemptCount           = "retry_attempt_count"
	MetaLinkedSubscriptionID        = "linked_subscription_id"
	MetaLinkedGatewaySubscriptionID = "linked_gateway_subscription_id"
	MetaRetryExhaustedAt            = "retry_exhausted_at"
)

// MetaString returns the value stored under key as a string.
// Numbers are formatted without a fractional part when they are integral.
func MetaString(m datatypes.JSONMap, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	}
	return "", false
}

// MetaInt returns the value stored under key as an integer. Metadata written by
// the host systems may carry numbers as strings.
func MetaInt(m datatypes.JSONMap, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// LinkedLevelID returns the membership level a commerce entity is linked to,
// or 0 when the link is absent or unparsable.
func LinkedLevelID(m datatypes.JSONMap) uint {
	n, ok := MetaInt(m, MetaLinkedLevelID)
	if !ok || n <= 0 {
		return 0
	}
	return uint(n)
}

// SetMeta writes key into m, allocating the map when needed.
func SetMeta(m datatypes.JSONMap, key string, value interface{}) datatypes.JSONMap {
	if m == nil {
		m = datatypes.JSONMap{}
	}
	m[key] = value
	return m
}
