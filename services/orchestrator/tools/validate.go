// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Validate checks a call against its schema. Checks run in order: unknown
// tool, missing required parameters, parameter types, enum membership.
// Parameters not declared in the schema are ignored.
func Validate(call Call) error {
	schema, ok := schemas[call.Name]
	if !ok {
		return fmt.Errorf("Unknown tool: %s", call.Name)
	}

	for _, req := range schema.Required {
		if _, present := call.Arguments[req]; !present {
			return fmt.Errorf("Missing required parameter: %s", req)
		}
	}

	params := declaredParams(schema, call.Arguments)
	for _, param := range params {
		if err := checkType(param, schema.Properties[param], call.Arguments[param]); err != nil {
			return err
		}
	}
	for _, param := range params {
		if err := checkEnum(param, schema.Properties[param], call.Arguments[param]); err != nil {
			return err
		}
	}
	return nil
}

// declaredParams returns the supplied parameters the schema knows, sorted.
func declaredParams(schema Schema, args map[string]any) []string {
	params := make([]string, 0, len(args))
	for param := range args {
		if _, ok := schema.Properties[param]; ok {
			params = append(params, param)
		}
	}
	sort.Strings(params)
	return params
}

func checkType(param string, prop Property, value any) error {
	var ok bool
	var article string
	switch prop.Type {
	case typeString:
		_, ok = value.(string)
		article = "a"
	case typeInteger:
		ok = isInteger(value)
		article = "an"
	case typeNumber:
		_, ok = toFloat(value)
		article = "a"
	case typeBoolean:
		_, ok = value.(bool)
		article = "a"
	case typeArray:
		_, ok = toSlice(value)
		article = "an"
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("Parameter %s must be %s %s", param, article, prop.Type)
	}
	if prop.Type == typeArray && prop.Items != nil {
		items, _ := toSlice(value)
		for _, item := range items {
			if err := checkType(param+" item", *prop.Items, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkEnum(param string, prop Property, value any) error {
	if prop.Type == typeArray {
		if prop.Items == nil || len(prop.Items.Enum) == 0 {
			return nil
		}
		items, _ := toSlice(value)
		for _, item := range items {
			if s, _ := item.(string); !slices.Contains(prop.Items.Enum, s) {
				return fmt.Errorf("Parameter %s must contain only: %s", param, strings.Join(prop.Items.Enum, ", "))
			}
		}
		return nil
	}
	if len(prop.Enum) == 0 {
		return nil
	}
	if s, _ := value.(string); !slices.Contains(prop.Enum, s) {
		return fmt.Errorf("Parameter %s must be one of: %s", param, strings.Join(prop.Enum, ", "))
	}
	return nil
}

// toFloat accepts the numeric shapes produced by encoding/json and by Go callers.
// Booleans are never numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isInteger(v any) bool {
	f, ok := toFloat(v)
	return ok && !math.IsInf(f, 0) && f == math.Trunc(f)
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}
