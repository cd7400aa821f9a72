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

// Package repository provides a generic repository built on Bun.
//
// A Repository applies its pushed criteria, then the one-shot scope, then
// the per-call conditions to every read. Writes only honor the scope.
// After every operation, on success or failure, the chained modifiers and
// the scope are reset so the next call starts from an unfiltered query.
// Create, update and delete emit lifecycle events to the configured sink.
//
// A Repository is not safe for concurrent use; create one per call chain.
package repository
