package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Collection names of the real-time store.
type Collection string

const (
	Rooms        Collection = "rooms"
	Participants Collection = "participants"
	Writings     Collection = "writings"
	Messages     Collection = "messages"
)

// ErrConditionFailed is returned by Update when a precondition does not hold.
var ErrConditionFailed = errors.New("condition failed")

// Fields is a partial document. Values are JSON-encodable; Increment values
// are applied atomically by the store.
type Fields map[string]any

// Increment adds N to a numeric field instead of overwriting it.
type Increment int64

// Doc is a stored document: the id plus its fields encoded one JSON value per key.
type Doc struct {
	ID     string
	Fields map[string]json.RawMessage
}

// JSON re-assembles the document as a single object.
func (d Doc) JSON() ([]byte, error) {
	return json.Marshal(d.Fields)
}

// Cond is an equality precondition. A nil Value matches a missing or null field.
type Cond struct {
	Field string
	Value any
}

// Filter selects documents by field equality. An empty filter matches all.
type Filter []Cond

// Where starts a filter.
func Where(field string, value any) Filter {
	return Filter{{Field: field, Value: value}}
}

// And narrows a filter.
func (f Filter) And(field string, value any) Filter {
	out := make(Filter, 0, len(f)+1)
	out = append(out, f...)
	return append(out, Cond{Field: field, Value: value})
}

// Match reports whether every condition holds for fields.
func (f Filter) Match(fields map[string]json.RawMessage) bool {
	for _, c := range f {
		if !c.Match(fields) {
			return false
		}
	}
	return true
}

func (c Cond) Match(fields map[string]json.RawMessage) bool {
	want, err := json.Marshal(c.Value)
	if err != nil {
		return false
	}
	got, ok := fields[c.Field]
	if !ok || len(got) == 0 {
		got = json.RawMessage("null")
	}
	return bytes.Equal(compact(got), compact(want))
}

func compact(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return b
	}
	return buf.Bytes()
}

// Snapshot is delivered on every change: all docs currently matching the filter.
type Snapshot struct {
	Collection Collection
	Docs       []Doc
}

// Unsubscribe detaches a subscription. Safe to call more than once.
type Unsubscribe func()

// Store is the real-time document store the engine writes to directly.
// Delivery is at-least-once and ordered per subscription only.
type Store interface {
	Create(ctx context.Context, coll Collection, id string, fields Fields) error
	Get(ctx context.Context, coll Collection, id string) (Doc, error)
	Update(ctx context.Context, coll Collection, id string, fields Fields, conds ...Cond) error
	Query(ctx context.Context, coll Collection, filter Filter) ([]Doc, error)
	Subscribe(ctx context.Context, coll Collection, filter Filter, onChange func(Snapshot), onErr func(error)) (Unsubscribe, error)
}

// EncodeFields converts a record into Fields through its JSON form, so the
// stored keys are the record's json names.
func EncodeFields(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make(Fields, len(raw))
	for k, val := range raw {
		out[k] = val
	}
	return out, nil
}

// Apply merges fields into a copy of base, resolving Increment values against
// the current number (a missing field counts as zero).
func Apply(base map[string]json.RawMessage, fields Fields) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		if inc, ok := v.(Increment); ok {
			var cur int64
			if raw, ok := out[k]; ok && string(raw) != "null" {
				n, err := strconv.ParseInt(string(raw), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("increment %s: %w", k, err)
				}
				cur = n
			}
			out[k] = json.RawMessage(strconv.FormatInt(cur+int64(inc), 10))
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}
