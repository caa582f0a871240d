package gateway

import "sync"

// Registry 房间订阅表：serverID -> 本节点订阅该服务器的连接集合。
type Registry struct {
	mu       sync.RWMutex
	byServer map[string]map[string]struct{} // serverID -> connID set
	byConn   map[string]map[string]struct{} // connID -> serverID set
}

func NewRegistry() *Registry {
	return &Registry{
		byServer: make(map[string]map[string]struct{}),
		byConn:   make(map[string]map[string]struct{}),
	}
}

func (r *Registry) Subscribe(serverID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byServer[serverID] == nil {
		r.byServer[serverID] = make(map[string]struct{})
	}
	r.byServer[serverID][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][serverID] = struct{}{}
}

func (r *Registry) Unsubscribe(serverID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.byServer[serverID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byServer, serverID)
		}
	}
	if m := r.byConn[connID]; m != nil {
		delete(m, serverID)
		if len(m) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// DropConn 连接关闭时摘掉它全部的房间订阅。
func (r *Registry) DropConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for serverID := range r.byConn[connID] {
		if m := r.byServer[serverID]; m != nil {
			delete(m, connID)
			if len(m) == 0 {
				delete(r.byServer, serverID)
			}
		}
	}
	delete(r.byConn, connID)
}

// ConnIDs 列出订阅了该服务器房间的本地连接。
func (r *Registry) ConnIDs(serverID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byServer[serverID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
