package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseResponse normalizes a gateway response body into a flat map.
//
// The live API answers with a JSON object while some sandbox and legacy
// endpoints still return key=value lines, so both are accepted. A blank or
// unparseable body yields an empty map; callers treat that as "no usable
// response".
func ParseResponse(body string) map[string]string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return map[string]string{}
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return parseJSON(trimmed)
	}
	return parseKeyValue(trimmed)
}

func parseJSON(body string) map[string]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(raw))
	for key, value := range raw {
		out[key] = stringifyJSON(value)
	}
	return out
}

// stringifyJSON renders a JSON value the way the gateway's own clients read
// it: strings unquoted, null as empty, everything else as compact JSON text.
func stringifyJSON(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return string(trimmed)
		}
		return s
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

func parseKeyValue(body string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
