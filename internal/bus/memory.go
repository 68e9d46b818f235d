package bus

import (
	"sync"
)

// Message is one payload seen by a Memory bus.
type Message struct {
	Subject string
	Data    []byte
}

// Memory is an in-process Conn. Delivery is synchronous and subjects match
// exactly. Used by the simulator and by tests.
type Memory struct {
	mu        sync.Mutex
	subs      map[string]map[int]Handler
	nextID    int
	published []Message
	err       error
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]Handler)}
}

func (m *Memory) Publish(subject string, data []byte) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, Message{Subject: subject, Data: append([]byte(nil), data...)})
	handlers := make([]Handler, 0, len(m.subs[subject]))
	for _, h := range m.subs[subject] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(subject, data)
	}
	return nil
}

func (m *Memory) Subscribe(subject string, h Handler) (func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	id := m.nextID
	m.nextID++
	if m.subs[subject] == nil {
		m.subs[subject] = make(map[int]Handler)
	}
	m.subs[subject][id] = h
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[subject], id)
		return nil
	}, nil
}

// Fail makes Publish and Subscribe return err. nil restores.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Published returns every message published on subject.
func (m *Memory) Published(subject string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.published {
		if msg.Subject == subject {
			out = append(out, msg)
		}
	}
	return out
}

// Subscribers returns the number of live handlers on subject.
func (m *Memory) Subscribers(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[subject])
}
