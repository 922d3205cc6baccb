// Package preview issues revocable preview handles for image payloads.
package preview

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/moyoez/kbupload/tool"
)

// Source is what a preview reads from.
type Source interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// Store maps live preview tokens to their sources. Tokens exist only between
// Acquire and Release.
type Store struct {
	mu      sync.RWMutex
	sources map[string]Source
	baseURL string
}

// NewStore creates a store whose handle URLs are rooted at baseURL,
// e.g. "http://127.0.0.1:53319/api/self/v1/preview".
func NewStore(baseURL string) *Store {
	return &Store{
		sources: make(map[string]Source),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Acquire registers src and returns the handle that owns it.
func (s *Store) Acquire(src Source) *Handle {
	token := tool.GenerateRandomUUID()

	s.mu.Lock()
	s.sources[token] = src
	s.mu.Unlock()

	tool.DefaultLogger.Debugf("[Preview] Acquired %s for %s", token, src.Name())
	return &Handle{
		token: token,
		url:   fmt.Sprintf("%s/%s", s.baseURL, token),
		store: s,
	}
}

// Lookup returns the source behind token while it is live.
func (s *Store) Lookup(token string) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[token]
	return src, ok
}

// Live is the number of handles not yet released.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

func (s *Store) revoke(token string) {
	s.mu.Lock()
	delete(s.sources, token)
	s.mu.Unlock()
	tool.DefaultLogger.Debugf("[Preview] Released %s", token)
}

// Handle is an owned reference to one preview. Release may be called any number
// of times; only the first call revokes the token.
type Handle struct {
	token    string
	url      string
	store    *Store
	once     sync.Once
	released atomic.Bool
}

func (h *Handle) Token() string { return h.token }
func (h *Handle) URL() string   { return h.url }

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	return h.released.Load()
}

func (h *Handle) Release() {
	h.once.Do(func() {
		h.released.Store(true)
		h.store.revoke(h.token)
	})
}
