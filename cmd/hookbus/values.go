package main

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// parseValue decodes a command-line argument as JSON. Arguments that are
// not valid JSON are passed through as plain strings, so `hello` and
// `"hello"` are the same value.
func parseValue(s string) any {
	if !gjson.Valid(s) {
		return s
	}
	return gjson.Parse(s).Value()
}

func parseValues(args []string) []any {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = parseValue(a)
	}
	return values
}

// encodeValue renders v as JSON. When path is set only the part of v it
// selects is returned.
func encodeValue(v any, path string, compact bool) ([]byte, error) {
	doc, err := sjson.SetBytes(nil, "value", v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	selector := "value"
	if path != "" {
		selector += "." + path
	}
	res := gjson.GetBytes(doc, selector)
	if !res.Exists() {
		return nil, fmt.Errorf("no value at %q", path)
	}

	raw := []byte(res.Raw)
	if compact {
		return append(pretty.Ugly(raw), '\n'), nil
	}
	return pretty.Pretty(raw), nil
}
