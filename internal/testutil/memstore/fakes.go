package memstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/media"
	"github.com/khoahotran/stories-backend/internal/domain/story"
)

// MediaStore is a scriptable media store. Uploads succeed as images unless
// UploadFunc is set; destroys return "ok" unless scripted per public id.
type MediaStore struct {
	mu          sync.Mutex
	UploadFunc  func(n int, opts service.UploadOptions) (*media.UploadResult, error)
	DestroyHook func(publicID string)
	Destroyed   []string
	Attempts    map[string]int
	uploads     int
	destroy     map[string]DestroyScript
}

// DestroyScript is consumed one entry per call; the last entry repeats.
type DestroyScript []DestroyStep

type DestroyStep struct {
	Result string
	Err    error
}

func NewMediaStore() *MediaStore {
	return &MediaStore{destroy: make(map[string]DestroyScript), Attempts: make(map[string]int)}
}

func (m *MediaStore) Script(publicID string, steps ...DestroyStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroy[publicID] = steps
}

func (m *MediaStore) Upload(_ context.Context, file io.Reader, opts service.UploadOptions) (*media.UploadResult, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return nil, err
	}
	m.mu.Lock()
	n := m.uploads
	m.uploads++
	fn := m.UploadFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(n, opts)
	}
	return &media.UploadResult{
		URL:          fmt.Sprintf("https://cdn.test/%s/%d.jpg", opts.Folder, n),
		PublicID:     fmt.Sprintf("%s/%d", opts.Folder, n),
		ResourceType: "image",
		Format:       "jpg",
	}, nil
}

func (m *MediaStore) Destroy(_ context.Context, publicID string, _ media.Type) (media.DestroyOutcome, error) {
	m.mu.Lock()
	m.Attempts[publicID]++
	step := DestroyStep{Result: "ok"}
	if script, ok := m.destroy[publicID]; ok && len(script) > 0 {
		step = script[0]
		if len(script) > 1 {
			m.destroy[publicID] = script[1:]
		}
	}
	if step.Err == nil && (media.DestroyOutcome{Result: step.Result}).Succeeded() {
		m.Destroyed = append(m.Destroyed, publicID)
	}
	hook := m.DestroyHook
	m.mu.Unlock()

	if hook != nil {
		hook(publicID)
	}
	return media.DestroyOutcome{Result: step.Result}, step.Err
}

func (m *MediaStore) AttemptsFor(publicID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Attempts[publicID]
}

var ErrStoreDown = errors.New("media store unavailable")

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []story.Event
	Err    error
	sent   chan story.Event
}

func NewPublisher() *Publisher {
	return &Publisher{sent: make(chan story.Event, 64)}
}

func (p *Publisher) Publish(_ context.Context, evt story.Event) error {
	p.mu.Lock()
	p.Events = append(p.Events, evt)
	err := p.Err
	p.mu.Unlock()
	select {
	case p.sent <- evt:
	default:
	}
	return err
}

// Sent exposes published events for tests waiting on async publishes.
func (p *Publisher) Sent() <-chan story.Event {
	return p.sent
}

func (p *Publisher) Published() []story.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]story.Event, len(p.Events))
	copy(out, p.Events)
	return out
}

type Delivery struct {
	UserID  uuid.UUID
	Event   string
	Payload any
}

// Notifier records live deliveries. Users in Online are considered connected.
type Notifier struct {
	mu         sync.Mutex
	Online     map[uuid.UUID]bool
	Deliveries []Delivery
}

func NewNotifier(online ...uuid.UUID) *Notifier {
	n := &Notifier{Online: make(map[uuid.UUID]bool)}
	for _, id := range online {
		n.Online[id] = true
	}
	return n
}

func (n *Notifier) Deliver(userID uuid.UUID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.Online[userID] {
		return false
	}
	n.Deliveries = append(n.Deliveries, Delivery{UserID: userID, Event: event, Payload: payload})
	return true
}

func (n *Notifier) Delivered() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Delivery, len(n.Deliveries))
	copy(out, n.Deliveries)
	return out
}
