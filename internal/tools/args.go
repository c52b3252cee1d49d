package tools

import (
	"encoding/json"
	"strconv"
)

func stringArg(args map[string]any, key string) (string, *ToolError) {
	v, ok := args[key]
	if !ok {
		return "", invalidArgs("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalidArgs("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func numberArg(args map[string]any, key string) (float64, *ToolError) {
	v, ok := args[key]
	if !ok {
		return 0, invalidArgs("missing required argument %q", key)
	}
	return asNumber(v, key)
}

// intArgDefault reads an optional integer-valued argument. JSON numbers
// arrive as float64; strings are accepted because gateway callers send
// query-style values.
func intArgDefault(args map[string]any, key string, def int) (int, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	f, terr := asNumber(v, key)
	if terr != nil {
		return 0, terr
	}
	return int(f), nil
}

func asNumber(v any, key string) (float64, *ToolError) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalidArgs("argument %q must be a number", key)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, invalidArgs("argument %q must be a number", key)
		}
		return f, nil
	}
	return 0, invalidArgs("argument %q must be a number", key)
}

func objectArg(args map[string]any, key string) (map[string]any, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidArgs("argument %q must be an object", key)
	}
	return m, nil
}

// historyArg decodes the analyze_heating_rate history array.
func historyArg(args map[string]any, key string) ([]HistoryPoint, *ToolError) {
	v, ok := args[key]
	if !ok {
		return nil, invalidArgs("missing required argument %q", key)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, invalidArgs("argument %q must be an array", key)
	}
	points := make([]HistoryPoint, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, invalidArgs("history entry %d must be an object", i)
		}
		var p HistoryPoint
		if ts, ok := m["timestamp"].(string); ok {
			p.Timestamp = ts
		}
		if temp, ok := m["temperature"]; ok {
			f, terr := asNumber(temp, "temperature")
			if terr != nil {
				return nil, terr
			}
			p.Temperature = f
		}
		points = append(points, p)
	}
	return points, nil
}

func parseFloatProperty(properties map[string]string, key string) (float64, bool) {
	s, ok := properties[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
