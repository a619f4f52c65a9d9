package config

import (
	"sort"
	"sync"
)

// Runtime parameter names seeded at startup.
const (
	ParamDir        = "dir"
	ParamDBFilename = "dbfilename"
	ParamReplicaOf  = "replicaof"
)

// Params is the runtime parameter map served by CONFIG GET and CONFIG SET.
// It is safe for concurrent use.
type Params struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewParams returns a Params seeded from cfg.
func NewParams(cfg *ServerConfig) *Params {
	p := &Params{values: make(map[string]string)}
	p.values[ParamDir] = cfg.Snapshot.Dir
	p.values[ParamDBFilename] = cfg.Snapshot.DBFilename
	if cfg.Replication.ReplicaOf != "" {
		p.values[ParamReplicaOf] = cfg.Replication.ReplicaOf
	}
	return p
}

// Get returns the value of name.
func (p *Params) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Set assigns value to name.
func (p *Params) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Delete removes name.
func (p *Params) Delete(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, name)
}

// Names returns the set parameter names in sorted order.
func (p *Params) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
