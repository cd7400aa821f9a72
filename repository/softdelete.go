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

import "time"

// SoftDeletes marks an entity as soft deletable. Embed it without a tag:
//
//	type Post struct {
//		bun.BaseModel `bun:"table:posts"`
//		ID            int64 `bun:"id,pk,autoincrement"`
//		repository.SoftDeletes
//	}
type SoftDeletes struct {
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Trashed reports whether the entity has been soft deleted.
func (s SoftDeletes) Trashed() bool { return !s.DeletedAt.IsZero() }

// SoftDeletable is implemented by entities embedding SoftDeletes.
type SoftDeletable interface {
	Trashed() bool
}
