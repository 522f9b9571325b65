// broker/broker.go
package broker

import (
	"fmt"
	"sync"
)

// Event is what the broker fans out to websocket subscribers.
type Event struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	Title          string `json:"title,omitempty"`
}

const EventTitleUpdate = "title_update"

// ConversationTopic is the topic carrying conversation events for one user.
func ConversationTopic(userID uint) string {
	return fmt.Sprintf("conversation_%d", userID)
}

type Broker struct {
	subscribers map[string][]chan interface{}
	mu          sync.RWMutex
	buffer      int
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
		buffer:      8,
	}
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, b.buffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.subscribers[topic]
	for i, c := range chans {
		if c == ch {
			b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish delivers msg to every subscriber of topic. A subscriber whose buffer
// is full misses the message rather than blocking the publisher.
func (b *Broker) Publish(topic string, msg interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}
