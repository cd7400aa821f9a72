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

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.Observe("user", "find", 5*time.Millisecond, nil)
	p.Observe("user", "find", time.Millisecond, errors.New("boom"))
	p.Observe("user", "create", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues("user", "find", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues("user", "find", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))

	expected := `
# HELP bunrepo_operations_total Repository operations by model, operation and outcome
# TYPE bunrepo_operations_total counter
bunrepo_operations_total{model="user",operation="create",outcome="success"} 1
bunrepo_operations_total{model="user",operation="find",outcome="error"} 1
bunrepo_operations_total{model="user",operation="find",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bunrepo_operations_total"))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	require.Error(t, err)
}

func TestPrometheusCustomOutcome(t *testing.T) {
	p, err := NewPrometheus(prometheus.NewRegistry(), WithOutcome(func(err error) string {
		if err != nil {
			return "not_found"
		}
		return OutcomeSuccess
	}))
	require.NoError(t, err)

	p.Observe("post", "find", time.Millisecond, errors.New("missing"))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues("post", "find", "not_found")))
}

func TestNop(t *testing.T) {
	Nop.Observe("user", "all", time.Second, nil)
}
