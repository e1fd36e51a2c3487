package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Property values round-trip through JSON with an explicit type tag, so an
// int64 written by the importer is read back as int64 and not float64, and
// dates keep their kind.
const (
	kindString   = "s"
	kindInt      = "i"
	kindFloat    = "f"
	kindBool     = "b"
	kindDateTime = "dt"
	kindDate     = "d"
	kindList     = "l"
)

type taggedValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

// NormalizeValue converts v to the canonical property representation:
// all signed/unsigned integers become int64, float32 becomes float64 and
// slices become []any. It returns ErrInvalidData for unsupported types.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int64, float64, bool, time.Time, Date:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := NormalizeValue(e)
			if err != nil {
				return nil, err
			}
			if _, nested := n.([]any); nested {
				return nil, fmt.Errorf("%w: nested lists are not supported", ErrInvalidData)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported property type %T", ErrInvalidData, v)
	}
}

func encodeValue(v any) (taggedValue, error) {
	n, err := NormalizeValue(v)
	if err != nil {
		return taggedValue{}, err
	}

	var kind string
	var payload any
	switch x := n.(type) {
	case string:
		kind, payload = kindString, x
	case int64:
		// as a string, so values above 2^53 survive JSON number handling
		kind, payload = kindInt, strconv.FormatInt(x, 10)
	case float64:
		kind, payload = kindFloat, x
	case bool:
		kind, payload = kindBool, x
	case time.Time:
		kind, payload = kindDateTime, x.Format(time.RFC3339Nano)
	case Date:
		kind, payload = kindDate, x.String()
	case []any:
		items := make([]taggedValue, len(x))
		for i, e := range x {
			if items[i], err = encodeValue(e); err != nil {
				return taggedValue{}, err
			}
		}
		kind, payload = kindList, items
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return taggedValue{}, err
	}
	return taggedValue{T: kind, V: raw}, nil
}

func decodeValue(tv taggedValue) (any, error) {
	switch tv.T {
	case kindString:
		var s string
		err := json.Unmarshal(tv.V, &s)
		return s, err
	case kindInt:
		var s string
		if err := json.Unmarshal(tv.V, &s); err != nil {
			return nil, err
		}
		return strconv.ParseInt(s, 10, 64)
	case kindFloat:
		var f float64
		err := json.Unmarshal(tv.V, &f)
		return f, err
	case kindBool:
		var b bool
		err := json.Unmarshal(tv.V, &b)
		return b, err
	case kindDateTime:
		var s string
		if err := json.Unmarshal(tv.V, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case kindDate:
		var s string
		if err := json.Unmarshal(tv.V, &s); err != nil {
			return nil, err
		}
		return ParseDate(s)
	case kindList:
		var items []taggedValue
		if err := json.Unmarshal(tv.V, &items); err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown property kind %q", ErrInvalidData, tv.T)
	}
}

func encodeProperties(props map[string]any) (map[string]taggedValue, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string]taggedValue, len(props))
	for k, v := range props {
		tv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = tv
	}
	return out, nil
}

func decodeProperties(props map[string]taggedValue) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, tv := range props {
		v, err := decodeValue(tv)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// valueKey renders a property value as a map key that distinguishes types,
// so "1" and 1 never collide in a unique index.
func valueKey(v any) string {
	n, err := NormalizeValue(v)
	if err != nil {
		return fmt.Sprintf("?:%v", v)
	}
	tv, err := encodeValue(n)
	if err != nil {
		return fmt.Sprintf("?:%v", v)
	}
	return tv.T + ":" + string(tv.V)
}

// ValueKey is the exported form of the type-aware value key, used by callers
// that need set semantics over property values.
func ValueKey(v any) string {
	return valueKey(v)
}

func copyValue(v any) any {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		copy(out, list)
		return out
	}
	return v
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyValue(v)
	}
	return out
}

func copyNode(node *Node) *Node {
	if node == nil {
		return nil
	}
	return &Node{
		ID:         node.ID,
		Labels:     append([]string(nil), node.Labels...),
		Properties: copyProperties(node.Properties),
		CreatedAt:  node.CreatedAt,
		UpdatedAt:  node.UpdatedAt,
	}
}

func copyEdge(edge *Edge) *Edge {
	if edge == nil {
		return nil
	}
	return &Edge{
		ID:         edge.ID,
		StartNode:  edge.StartNode,
		EndNode:    edge.EndNode,
		Type:       edge.Type,
		Properties: copyProperties(edge.Properties),
		CreatedAt:  edge.CreatedAt,
		UpdatedAt:  edge.UpdatedAt,
	}
}
