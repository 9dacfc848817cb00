package utils

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// EncodeURLParams turns a struct with `url` tags into url.Values.
func EncodeURLParams(params interface{}) (url.Values, error) {
	v, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode url param: %w", err)
	}
	return v, nil
}

func BeautifyJSON(data []byte) string {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return string(data)
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(pretty)
}

func TruncateForLog(value string, length int) string {
	runes := []rune(value)
	if length <= 0 || len(runes) <= length {
		return value
	}
	return string(runes[:length]) + "..."
}
