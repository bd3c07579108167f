package task

import (
	"encoding/json"
	"math"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
)

// jsonRecord is the on-disk shape of a TaskRecord (spec §6).
type jsonRecord struct {
	Name              string  `json:"name"`
	CronExpression    string  `json:"cronExpression"`
	RetryDelayMs      int64   `json:"retryDelayMs"`
	LastSuccessTime   *string `json:"lastSuccessTime,omitempty"`
	LastFailureTime   *string `json:"lastFailureTime,omitempty"`
	LastAttemptTime   *string `json:"lastAttemptTime,omitempty"`
	PendingRetryUntil *string `json:"pendingRetryUntil,omitempty"`
}

// Serialize renders a Record as its persisted JSON form. Present
// timestamps are emitted as ISO strings; absent ones are omitted.
func Serialize(r Record) json.RawMessage {
	jr := jsonRecord{
		Name:           r.Name,
		CronExpression: r.CronExpression,
		RetryDelayMs:   r.RetryDelayMs,
	}
	jr.LastSuccessTime = isoPtr(r.LastSuccessTime)
	jr.LastFailureTime = isoPtr(r.LastFailureTime)
	jr.LastAttemptTime = isoPtr(r.LastAttemptTime)
	jr.PendingRetryUntil = isoPtr(r.PendingRetryUntil)

	raw, err := json.Marshal(jr)
	if err != nil {
		// jsonRecord contains only marshalable primitives; this cannot fail.
		panic(err)
	}
	return raw
}

func isoPtr(d *clock.DateTime) *string {
	if d == nil {
		return nil
	}
	s := d.ToISOString()
	return &s
}

// TryDeserialize parses a persisted record against the live
// registration set, per the rules in spec §4.2. The registration's
// cronText and retryDelay take precedence over whatever was persisted,
// so that schedule edits across deploys take effect immediately.
func TryDeserialize(raw json.RawMessage, registrations map[string]Registration) (Record, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Record{}, ErrTaskInvalidStructure
	}

	name, err := requiredString(generic, "name")
	if err != nil {
		return Record{}, err
	}

	reg, ok := registrations[name]
	if !ok {
		return Record{}, &InvalidValueError{Field: "name", Reason: "not found"}
	}

	retryDelayMs, err := optionalFiniteNonNegativeInt(generic, "retryDelayMs")
	if err != nil {
		return Record{}, err
	}

	cronExpression := reg.CronText
	if v, present := generic["cronExpression"]; present {
		if _, isString := v.(string); !isString {
			return Record{}, &InvalidTypeError{Field: "cronExpression"}
		}
		// Value is allowed but superseded: the live registration is
		// authoritative over a persisted schedule (spec §4.2 rule 5).
	}

	record := Record{
		Name:           name,
		CronExpression: cronExpression,
		RetryDelayMs:   reg.RetryDelay.ToMillis(),
	}
	// retryDelayMs was validated above but is informational only: the
	// live registration wins (spec §4.2 rule 5).
	_ = retryDelayMs

	record.LastSuccessTime, err = optionalTimestamp(generic, "lastSuccessTime")
	if err != nil {
		return Record{}, err
	}
	record.LastFailureTime, err = optionalTimestamp(generic, "lastFailureTime")
	if err != nil {
		return Record{}, err
	}
	record.LastAttemptTime, err = optionalTimestamp(generic, "lastAttemptTime")
	if err != nil {
		return Record{}, err
	}
	record.PendingRetryUntil, err = optionalTimestamp(generic, "pendingRetryUntil")
	if err != nil {
		return Record{}, err
	}

	return record, nil
}

func requiredString(m map[string]any, field string) (string, error) {
	raw, present := m[field]
	if !present {
		return "", &MissingFieldError{Field: field}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &InvalidTypeError{Field: field}
	}
	return s, nil
}

func optionalFiniteNonNegativeInt(m map[string]any, field string) (*int64, error) {
	raw, present := m[field]
	if !present {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &InvalidTypeError{Field: field}
	}
	if f < 0 {
		return nil, &InvalidValueError{Field: field, Reason: "must be >= 0"}
	}
	v := int64(f)
	return &v, nil
}

func optionalTimestamp(m map[string]any, field string) (*clock.DateTime, error) {
	raw, present := m[field]
	if !present || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &InvalidTypeError{Field: field}
	}
	dt, err := clock.FromISOString(s)
	if err != nil {
		return nil, &InvalidValueError{Field: field, Reason: "not a valid ISO-8601 timestamp"}
	}
	return &dt, nil
}
