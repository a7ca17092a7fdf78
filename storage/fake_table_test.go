package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"ttracker/domain"
)

type fakeRow struct {
	data []byte
	etag int
}

// fakeTable is an in-memory table with per-row version tags.
type fakeTable struct {
	mu        sync.Mutex
	rows      map[string]map[string]fakeRow
	replaceFn func(entity []byte, etag string) error
	listCalls int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string]map[string]fakeRow{}}
}

func keys(entity []byte) (string, string, error) {
	var k struct {
		PartitionKey string `json:"PartitionKey"`
		RowKey       string `json:"RowKey"`
	}
	if err := json.Unmarshal(entity, &k); err != nil {
		return "", "", err
	}
	return k.PartitionKey, k.RowKey, nil
}

func (f *fakeTable) Add(_ context.Context, entity []byte) error {
	pk, rk, err := keys(entity)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[pk][rk]; ok {
		return errEntityExists
	}
	if f.rows[pk] == nil {
		f.rows[pk] = map[string]fakeRow{}
	}
	f.rows[pk][rk] = fakeRow{data: append([]byte(nil), entity...), etag: 1}
	return nil
}

func (f *fakeTable) Get(_ context.Context, pk, rk string) (storedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[pk][rk]
	if !ok {
		return storedEntity{}, errNotFound
	}
	return storedEntity{Value: append([]byte(nil), row.data...), ETag: strconv.Itoa(row.etag)}, nil
}

func (f *fakeTable) Replace(_ context.Context, entity []byte, etag string) error {
	if f.replaceFn != nil {
		if err := f.replaceFn(entity, etag); err != nil {
			return err
		}
	}
	pk, rk, err := keys(entity)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[pk][rk]
	if !ok {
		return errNotFound
	}
	if etag != "" && etag != strconv.Itoa(row.etag) {
		return domain.ErrConcurrencyConflict
	}
	f.rows[pk][rk] = fakeRow{data: append([]byte(nil), entity...), etag: row.etag + 1}
	return nil
}

func (f *fakeTable) Merge(_ context.Context, entity []byte) error {
	pk, rk, err := keys(entity)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[pk][rk]
	if !ok {
		return errNotFound
	}
	var cur, patch map[string]any
	if err := json.Unmarshal(row.data, &cur); err != nil {
		return err
	}
	if err := json.Unmarshal(entity, &patch); err != nil {
		return err
	}
	for k, v := range patch {
		cur[k] = v
	}
	merged, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	f.rows[pk][rk] = fakeRow{data: merged, etag: row.etag + 1}
	return nil
}

func (f *fakeTable) Delete(_ context.Context, pk, rk string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[pk][rk]; !ok {
		return errNotFound
	}
	delete(f.rows[pk], rk)
	return nil
}

func (f *fakeTable) List(_ context.Context, pk string, where ...cond) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out [][]byte
	for _, row := range f.rows[pk] {
		var props map[string]any
		if err := json.Unmarshal(row.data, &props); err != nil {
			return nil, err
		}
		match := true
		for _, c := range where {
			if fmt.Sprint(props[c.field]) != fmt.Sprint(c.value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, append([]byte(nil), row.data...))
		}
	}
	return out, nil
}

func (f *fakeTable) count(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[pk])
}

// newTestStorage returns a Storage over fake tables with sequential ids.
func newTestStorage() (*Storage, *fakeTable, *fakeTable) {
	employees, tasks := newFakeTable(), newFakeTable()
	s := newStorage(employees, tasks)
	var n int
	s.newID = func() (string, error) {
		n++
		return fmt.Sprintf("id-%03d", n), nil
	}
	return s, employees, tasks
}
