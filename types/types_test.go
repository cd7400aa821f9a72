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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())

	p = NewDefaultPageRequest(3, 20)
	assert.Equal(t, 40, p.GetOffset())
}

func TestParsedOrders(t *testing.T) {
	p := NewPageRequestWithOrders(1, 10, []string{"id desc", " ", "name", "age ASC"})
	assert.Equal(t, []Order{
		{Field: "id", Direction: "DESC"},
		{Field: "name", Direction: "ASC"},
		{Field: "age", Direction: "ASC"},
	}, p.ParsedOrders())
}

func TestPaginationPages(t *testing.T) {
	p := &Pagination[struct{}]{Page: 1, PageSize: 3, Total: 5}
	assert.Equal(t, 2, p.LastPage())
	assert.True(t, p.HasMorePages())

	p.Page = 2
	assert.False(t, p.HasMorePages())

	empty := NewDefaultPagination[struct{}](1, 10)
	assert.Equal(t, 1, empty.LastPage())
	assert.NotNil(t, empty.Items)
}

func TestAttributes(t *testing.T) {
	a := Attributes{"name": "john", "age": 3}
	assert.Equal(t, []string{"age", "name"}, a.Keys())

	m := a.Merge(Attributes{"age": 4, "email": "j@x.io"})
	assert.Equal(t, 4, m["age"])
	assert.Equal(t, 3, a["age"])
	assert.Len(t, m, 3)
}
