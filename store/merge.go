package store

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hatsunemiku3939/underwriter/types"
)

// Merge folds next into prior. Entries of next win, except that an entry still waiting or failed
// never replaces a prior entry that had already resolved.
func Merge(prior, next types.ResultSet) types.ResultSet {
	out := make(types.ResultSet, len(prior)+len(next))
	for name, r := range prior {
		out[name] = r
	}
	for name, r := range next {
		if old, ok := prior[name]; ok && r.Code.Retryable() && !old.Code.Retryable() {
			continue
		}
		out[name] = r
	}
	return out
}

// decodeResults reads a stored result map back into a ResultSet.
func decodeResults(stored map[string]any) (types.ResultSet, error) {
	out := make(types.ResultSet, len(stored))
	for name, raw := range stored {
		m, ok := plain(raw).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("stored result %s is %T", name, raw)
		}
		r, err := types.ResultFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("stored result %s: %w", name, err)
		}
		out[name] = r
	}
	return out, nil
}

// plain converts values decoded from BSON into the map[string]any / []any shapes the rest of the
// code works with.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.A:
		return plainSlice(t)
	case map[string]any:
		return plainMap(t)
	case types.Record:
		return plainMap(t)
	case []any:
		return plainSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = plain(v)
	}
	return out
}

// plainRecord normalizes a decoded record.
func plainRecord(r types.Record) types.Record {
	if r == nil {
		return nil
	}
	return types.Record(plainMap(r))
}

func unixTimestamp(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
