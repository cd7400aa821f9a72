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

// Package events defines the lifecycle notifications a repository emits
// after create, update and delete, and the sinks that receive them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation an event describes.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Source is the repository that emitted an event.
type Source interface {
	ModelName() string
}

// Event is an immutable record of a completed mutation.
type Event interface {
	ID() uuid.UUID
	Action() Action
	Repository() Source
	// Entity is a snapshot of the affected entity, a pointer to the model.
	// The copy is shallow: relations loaded with With are shared with the
	// entity returned to the caller.
	Entity() interface{}
	Model() string
	OccurredAt() time.Time
}

type base struct {
	id         uuid.UUID
	action     Action
	source     Source
	entity     interface{}
	occurredAt time.Time
}

func newBase(action Action, source Source, entity interface{}) base {
	return base{
		id:         uuid.New(),
		action:     action,
		source:     source,
		entity:     entity,
		occurredAt: time.Now().UTC(),
	}
}

func (e base) ID() uuid.UUID         { return e.id }
func (e base) Action() Action        { return e.action }
func (e base) Repository() Source    { return e.source }
func (e base) Entity() interface{}   { return e.entity }
func (e base) OccurredAt() time.Time { return e.occurredAt }

func (e base) Model() string {
	if e.source == nil {
		return ""
	}
	return e.source.ModelName()
}

// EntityCreated is emitted after an insert.
type EntityCreated struct{ base }

// EntityUpdated is emitted after an update.
type EntityUpdated struct{ base }

// EntityDeleted is emitted after a delete. Its entity is the state read
// before the row was removed.
type EntityDeleted struct{ base }

func NewEntityCreated(source Source, entity interface{}) *EntityCreated {
	return &EntityCreated{newBase(ActionCreated, source, entity)}
}

func NewEntityUpdated(source Source, entity interface{}) *EntityUpdated {
	return &EntityUpdated{newBase(ActionUpdated, source, entity)}
}

func NewEntityDeleted(source Source, entity interface{}) *EntityDeleted {
	return &EntityDeleted{newBase(ActionDeleted, source, entity)}
}

// New builds the event type matching action. Unknown actions yield nil.
func New(action Action, source Source, entity interface{}) Event {
	switch action {
	case ActionCreated:
		return NewEntityCreated(source, entity)
	case ActionUpdated:
		return NewEntityUpdated(source, entity)
	case ActionDeleted:
		return NewEntityDeleted(source, entity)
	}
	return nil
}
