package websocket

import (
	"sync"

	"carpool/pkg/logger"
)

// Manager tracks WebSocket subscribers by topic key. A topic is an
// opaque string such as "booking:<id>" or "driver:<id>"; a connection
// may subscribe to any number of topics and is dropped from all of
// them when it disconnects.
type Manager struct {
	topics map[string]map[*Connection]struct{}
	mu     sync.RWMutex
	log    logger.Logger
}

// NewManager creates a new WebSocket subscription manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		topics: make(map[string]map[*Connection]struct{}),
		log:    log,
	}
}

// Subscribe registers a connection for a topic
func (m *Manager) Subscribe(topic string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.topics[topic]
	if !ok {
		subs = make(map[*Connection]struct{})
		m.topics[topic] = subs
	}
	subs[conn] = struct{}{}

	m.log.WithFields(logger.LogFields{
		"topic":   topic,
		"user_id": conn.Claims.UserID,
		"total":   len(subs),
	}).Info("websocket_subscribed", "Connection subscribed to topic")
}

// Unsubscribe removes a connection from a topic and closes it if it
// no longer holds any subscription.
func (m *Manager) Unsubscribe(topic string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if subs, ok := m.topics[topic]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(m.topics, topic)
		}
		m.log.WithFields(logger.LogFields{
			"topic":   topic,
			"user_id": conn.Claims.UserID,
		}).Info("websocket_unsubscribed", "Connection removed from topic")
	}
}

// Publish sends a message to every subscriber of a topic. Dead
// connections are pruned as they are found.
func (m *Manager) Publish(topic string, message interface{}) {
	m.mu.RLock()
	subs := make([]*Connection, 0, len(m.topics[topic]))
	for conn := range m.topics[topic] {
		subs = append(subs, conn)
	}
	m.mu.RUnlock()

	for _, conn := range subs {
		if err := conn.WriteJSON(message); err != nil {
			m.log.WithFields(logger.LogFields{
				"topic":   topic,
				"user_id": conn.Claims.UserID,
			}).Error("websocket_publish_failed", err)
			m.Unsubscribe(topic, conn)
			conn.Close()
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic
func (m *Manager) SubscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topic])
}
