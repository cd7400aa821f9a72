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

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher publishes a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Message is the JSON payload PublisherSink sends.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	Action     Action      `json:"action"`
	Model      string      `json:"model"`
	OccurredAt time.Time   `json:"occurred_at"`
	Entity     interface{} `json:"entity"`
}

// PublisherSink publishes every event as JSON to "<prefix>.<model>.<action>".
type PublisherSink struct {
	publisher Publisher
	prefix    string
	onError   func(Event, error)
}

// PublisherOption configures a PublisherSink.
type PublisherOption func(*PublisherSink)

// WithTopicPrefix sets the topic prefix, "repository" by default.
func WithTopicPrefix(prefix string) PublisherOption {
	return func(s *PublisherSink) { s.prefix = prefix }
}

// WithErrorHandler is called when encoding or publishing fails.
func WithErrorHandler(fn func(Event, error)) PublisherOption {
	return func(s *PublisherSink) { s.onError = fn }
}

func NewPublisherSink(publisher Publisher, opts ...PublisherOption) *PublisherSink {
	s := &PublisherSink{publisher: publisher, prefix: "repository"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the topic e is published to.
func (s *PublisherSink) Topic(e Event) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s.%s", e.Model(), e.Action())
	}
	return fmt.Sprintf("%s.%s.%s", s.prefix, e.Model(), e.Action())
}

func (s *PublisherSink) Dispatch(ctx context.Context, e Event) {
	if s.publisher == nil || e == nil {
		return
	}
	msg, err := json.Marshal(Message{
		ID:         e.ID(),
		Action:     e.Action(),
		Model:      e.Model(),
		OccurredAt: e.OccurredAt(),
		Entity:     e.Entity(),
	})
	if err != nil {
		s.fail(e, fmt.Errorf("failed to encode %s event: %w", e.Action(), err))
		return
	}
	if err := s.publisher.Publish(ctx, s.Topic(e), msg); err != nil {
		s.fail(e, fmt.Errorf("failed to publish %s event: %w", e.Action(), err))
	}
}

func (s *PublisherSink) fail(e Event, err error) {
	if s.onError != nil {
		s.onError(e, err)
	}
}
