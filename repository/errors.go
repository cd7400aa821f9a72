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
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCriterion is returned when a value pushed onto the criteria
	// stack is nil or names an unregistered criterion kind.
	ErrInvalidCriterion = errors.New("repository: invalid criterion")

	// ErrEntityNotFound is returned when a lookup by primary key misses.
	ErrEntityNotFound = errors.New("repository: entity not found")

	// ErrUnsupportedCapability is returned by soft delete operations on
	// entities that do not embed SoftDeletes.
	ErrUnsupportedCapability = errors.New("repository: unsupported capability")

	// ErrInvalidModelType is returned when the model factory yields nil, a
	// non struct, or a struct without a bun primary key.
	ErrInvalidModelType = errors.New("repository: invalid model type")

	// ErrUnknownColumn is returned when attributes name a column the entity
	// does not map.
	ErrUnknownColumn = errors.New("repository: unknown column")
)

func notFound(model string, id interface{}, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", ErrEntityNotFound, model, id)
	}
	return err
}
