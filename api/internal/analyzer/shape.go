package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

var (
	resultKeys = []string{"foods", "total_calories", "health_tip"}
	itemKeys   = []string{"name", "bbox", "weight_g", "calories", "protein", "carbs", "fat", "confidence"}
	macroKeys  = []string{"weight_g", "calories", "protein", "carbs", "fat"}
)

// CheckShape validates model JSON against Schema locally, whether or not the
// engine enforced it natively. Out-of-range bbox values are left to the renderer.
func CheckShape(data []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("bad JSON: %w", err)
	}
	if err := requireKeys(root, resultKeys, "result"); err != nil {
		return err
	}
	var total int64
	if err := json.Unmarshal(root["total_calories"], &total); err != nil || total < 0 {
		return errors.New("schema: total_calories must be a non-negative integer")
	}

	var foods []map[string]json.RawMessage
	if err := json.Unmarshal(root["foods"], &foods); err != nil {
		return fmt.Errorf("schema: foods must be an array of objects: %w", err)
	}
	for i, item := range foods {
		where := fmt.Sprintf("foods[%d]", i)
		if err := requireKeys(item, itemKeys, where); err != nil {
			return err
		}
		var bbox []json.Number
		if err := json.Unmarshal(item["bbox"], &bbox); err != nil {
			return fmt.Errorf("schema: %s.bbox must be an array of numbers", where)
		}
		for _, k := range macroKeys {
			var v int64
			if err := json.Unmarshal(item[k], &v); err != nil || v < 0 {
				return fmt.Errorf("schema: %s.%s must be a non-negative integer", where, k)
			}
		}
		var conf float64
		if err := json.Unmarshal(item["confidence"], &conf); err != nil || conf < 0 || conf > 1 {
			return fmt.Errorf("schema: %s.confidence must be a number in [0,1]", where)
		}
	}
	return nil
}

func requireKeys(obj map[string]json.RawMessage, keys []string, where string) error {
	if obj == nil {
		return fmt.Errorf("schema: %s is not an object", where)
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || string(v) == "null" {
			return fmt.Errorf("schema: %s.%s is required", where, k)
		}
	}
	return nil
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient tags err as worth retrying. Engines call it for rate limits,
// 5xx responses and the like, since only they know their SDK's error types.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transient reports whether a retry could help.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
