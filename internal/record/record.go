// Package record recognizes performance records and flattens them into samples.
package record

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/internal/ticks"
	"github.com/and161185/mdm-forwarder/model"
)

// Perf is a record recognized as LINUX_PERF_BLOB. Only Classify creates it.
type Perf struct {
	items any
}

// Classify returns the Perf view of rec, or ErrUnrecognizedRecord when rec
// is not a LINUX_PERF_BLOB record carrying a DataItems field.
func Classify(rec model.RawRecord) (Perf, error) {
	dataType, _ := rec["DataType"].(string)
	items, ok := rec["DataItems"]
	if dataType != model.PerfBlobDataType || !ok {
		return Perf{}, fmt.Errorf("%w: DataType=%q", errs.ErrUnrecognizedRecord, dataType)
	}
	return Perf{items: items}, nil
}

// Decode yields one sample per collection of every data item. A failure is
// reported for the smallest enclosing unit (item or collection) and
// decoding carries on with the next one.
func Decode(p Perf) iter.Seq2[model.Sample, error] {
	return func(yield func(model.Sample, error) bool) {
		items, ok := p.items.([]any)
		if !ok {
			yield(model.Sample{}, fmt.Errorf("%w: DataItems is %T, want list", errs.ErrMalformedItem, p.items))
			return
		}

		for i, raw := range items {
			if !decodeItem(i, raw, yield) {
				return
			}
		}
	}
}

func decodeItem(idx int, raw any, yield func(model.Sample, error) bool) bool {
	item, ok := raw.(map[string]any)
	if !ok {
		return yield(model.Sample{}, fmt.Errorf("%w: item %d is %T", errs.ErrMalformedItem, idx, raw))
	}

	ts, _ := item["Timestamp"].(string)
	tk, err := ticks.FromString(ts)
	if err != nil {
		return yield(model.Sample{}, fmt.Errorf("item %d: %w", idx, err))
	}

	var names [3]string
	for i, field := range [...]string{"Host", "ObjectName", "InstanceName"} {
		if names[i], err = nameField(item, field); err != nil {
			return yield(model.Sample{}, fmt.Errorf("item %d: %w", idx, err))
		}
	}

	collections, ok := item["Collections"].([]any)
	if !ok {
		return yield(model.Sample{}, fmt.Errorf("%w: item %d: Collections is %T, want list", errs.ErrMalformedItem, idx, item["Collections"]))
	}

	for j, rawColl := range collections {
		s, err := decodeCollection(rawColl)
		if err != nil {
			if !yield(model.Sample{}, fmt.Errorf("item %d collection %d: %w", idx, j, err)) {
				return false
			}
			continue
		}
		s.Ticks, s.Host, s.Namespace, s.Instance = tk, names[0], names[1], names[2]
		if !yield(s, nil) {
			return false
		}
	}
	return true
}

func decodeCollection(raw any) (model.Sample, error) {
	coll, ok := raw.(map[string]any)
	if !ok {
		return model.Sample{}, fmt.Errorf("%w: collection is %T", errs.ErrMalformedItem, raw)
	}
	name, err := nameField(coll, "CounterName")
	if err != nil {
		return model.Sample{}, err
	}
	if name == "" {
		return model.Sample{}, fmt.Errorf("%w: empty CounterName", errs.ErrMalformedItem)
	}
	v, err := ToInt64(coll["Value"])
	if err != nil {
		return model.Sample{}, fmt.Errorf("counter %q: %w", name, err)
	}
	return model.Sample{Counter: name, Value: v}, nil
}

func nameField(m map[string]any, field string) (string, error) {
	s, ok := m[field].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", errs.ErrMalformedItem, field, m[field])
	}
	if strings.Contains(s, model.KeySeparator) {
		return "", fmt.Errorf("%w: %s contains a NUL byte", errs.ErrMalformedItem, field)
	}
	return s, nil
}

// ToInt64 converts a counter value to an integer. Fractional values are
// truncated toward zero; anything that is not a finite number in int64
// range is ErrNonNumericValue.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return parseNumeric(n.String())
	case string:
		return parseNumeric(strings.TrimSpace(n))
	case float64:
		return truncate(n)
	case float32:
		return truncate(float64(n))
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", errs.ErrNonNumericValue, n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: %T", errs.ErrNonNumericValue, v)
}

func parseNumeric(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errs.ErrNonNumericValue, s)
	}
	return truncate(f)
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", errs.ErrNonNumericValue, f)
	}
	return int64(f), nil
}
