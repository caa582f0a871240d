package store

import (
	"context"
	"sync"

	"VProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
)

// memKV 进程内 KV，单测与本地启动用。
// 记录以 BSON 编码存放，读写语义与 mongo 实现对齐（取出的是副本）。
type memKV struct {
	mu    sync.RWMutex
	colls map[string]map[string][]byte // coll -> id -> bson doc
}

func NewMemKV() KV {
	return &memKV{colls: make(map[string]map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, coll, id string, dest any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.colls[coll][id]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := bson.Unmarshal(raw, dest); err != nil {
		return false, errs.WrapMsg(err, "mem get decode", "coll", coll, "id", id)
	}
	return true, nil
}

func (m *memKV) Set(_ context.Context, coll, id string, rec any) error {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return errs.WrapMsg(err, "mem set encode", "coll", coll, "id", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.colls[coll] == nil {
		m.colls[coll] = make(map[string][]byte)
	}
	m.colls[coll][id] = raw
	return nil
}

func (m *memKV) Delete(_ context.Context, coll, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.colls[coll], id)
	return nil
}

func (m *memKV) Find(_ context.Context, coll, field, value string) ([]bson.Raw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []bson.Raw
	for _, raw := range m.colls[coll] {
		v, err := bson.Raw(raw).LookupErr(field)
		if err != nil {
			continue
		}
		if s, ok := v.StringValueOK(); ok && s == value {
			out = append(out, append(bson.Raw(nil), raw...))
		}
	}
	return out, nil
}
