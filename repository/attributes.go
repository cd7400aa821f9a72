/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tomoncle/bunrepo/types"
)

// fill decodes attrs into entity by bun column name and returns the
// columns it set.
func (r *Repository[T]) fill(entity *T, attrs types.Attributes) ([]string, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	columns := attrs.Keys()
	for _, col := range columns {
		if _, ok := r.table.FieldMap[col]; !ok {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, r.ModelName(), col)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bun",
		Squash:           true,
		WeaklyTypedInput: true,
		MatchName:        matchColumn,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result: entity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for %s: %w", r.ModelName(), err)
	}
	if err := dec.Decode(map[string]interface{}(attrs)); err != nil {
		return nil, fmt.Errorf("failed to fill %s: %w", r.ModelName(), err)
	}
	return columns, nil
}

func (r *Repository[T]) withoutPK(attrs types.Attributes) types.Attributes {
	out := make(types.Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, pk := range r.table.PKs {
		delete(out, pk.Name)
	}
	return out
}

// matchColumn matches a column name against a bun tag name or, for fields
// without one, the Go field name ("user_id" matches UserID).
func matchColumn(key, field string) bool {
	return strings.EqualFold(key, field) || strings.EqualFold(strings.ReplaceAll(key, "_", ""), field)
}
