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

package database

import (
	"sort"
	"sync"
)

var defaultRegistry = &modelRegistry{}

type registeredModel struct {
	instance interface{}
	priority int
}

// modelRegistry keeps the bun models whose tables migrations create.
type modelRegistry struct {
	mu     sync.RWMutex
	models []registeredModel
}

func (r *modelRegistry) register(instance interface{}, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, registeredModel{instance: instance, priority: priority})
}

// instances returns the models by ascending priority, in registration
// order within one priority.
func (r *modelRegistry) instances() []interface{} {
	r.mu.RLock()
	models := append([]registeredModel(nil), r.models...)
	r.mu.RUnlock()

	sort.SliceStable(models, func(i, j int) bool {
		return models[i].priority < models[j].priority
	})
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.instance
	}
	return out
}

// RegisterModel adds a bun model, e.g. (*User)(nil), to the default
// registry. Tables of lower priority are created first.
func RegisterModel(instance interface{}, priority int) {
	defaultRegistry.register(instance, priority)
}

// RegisteredModels returns the registered models sorted by priority.
func RegisteredModels() []interface{} {
	return defaultRegistry.instances()
}
