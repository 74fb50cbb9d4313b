package room

import (
	"sync"

	"github.com/mtomcal/usion-arena-server/internal/clock"
	"github.com/mtomcal/usion-arena-server/internal/webhook"
)

// Registry maps room id to runtime, creating rooms lazily on first join
// and tearing them down when they become empty or end through a
// mid-match disconnect (§4.5/§2 Room Registry). A room whose match ends
// by elimination or timeout stays registered until its last session is
// removed.
type Registry struct {
	cfg    Config
	clk    clock.Clock
	signer *webhook.Signer

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry builds an empty registry sharing cfg/clk/signer across
// every room it creates.
func NewRegistry(cfg Config, clk clock.Clock, signer *webhook.Signer) *Registry {
	return &Registry{
		cfg:    cfg,
		clk:    clk,
		signer: signer,
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreate returns the room for id, creating it (not yet running) if
// this is the first reference to it.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok {
		return r
	}

	r := New(id, reg.cfg, reg.clk, reg.signer, reg.remove)
	reg.rooms[id] = r
	return r
}

// Get returns the room for id if it already exists.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

func (reg *Registry) remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

// Count returns the number of currently registered rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
