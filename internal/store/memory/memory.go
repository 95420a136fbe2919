// Package memory implements store.Store entirely in process memory. It
// backs unit tests for every other component so they never need a
// database, mirroring the teacher's mock_repository.go role for its
// Supabase-backed services.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// Store is an in-memory, mutex-guarded store.Store implementation.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]model.Namespace
	specs      map[string]model.Spec
	objects    map[string]store.Object // key -> object
	statuses   map[string]model.ObjPsStatus
	processes  map[string]model.Process
	events     []model.Event
	nodes      map[string]model.Node
}

// New returns an empty memory store.
func New() *Store {
	return &Store{
		namespaces: make(map[string]model.Namespace),
		specs:      make(map[string]model.Spec),
		objects:    make(map[string]store.Object),
		statuses:   make(map[string]model.ObjPsStatus),
		processes:  make(map[string]model.Process),
		nodes:      make(map[string]model.Node),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateNamespace(ctx context.Context, name string) (*model.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[name]; ok {
		return nil, coreerrors.ErrConflict(fmt.Sprintf("namespace %q already exists", name))
	}
	ns := model.Namespace{Name: name, CreatedAt: time.Now().UTC()}
	s.namespaces[name] = ns
	return &ns, nil
}

func (s *Store) ReadNamespace(ctx context.Context, name string) (*model.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return nil, coreerrors.ErrNotFound("namespace", name)
	}
	return &ns, nil
}

func (s *Store) ListNamespaces(ctx context.Context, filter *model.Filter) ([]model.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return applyPagination(out, filter).([]model.Namespace), nil
}

func (s *Store) DeleteNamespace(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[name]; !ok {
		return coreerrors.ErrNotFound("namespace", name)
	}
	delete(s.namespaces, name)
	return nil
}

func (s *Store) CreateSpec(ctx context.Context, kind model.Kind, ownerKey string, data []byte, version string) (*model.Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := model.Spec{
		Key:       uuid.New().String(),
		Kind:      kind,
		OwnerKey:  ownerKey,
		Version:   version,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	s.specs[sp.Key] = sp
	return &sp, nil
}

func (s *Store) ReadSpec(ctx context.Context, specKey string) (*model.Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.specs[specKey]
	if !ok {
		return nil, coreerrors.ErrNotFound("spec", specKey)
	}
	return &sp, nil
}

func (s *Store) CreateObject(ctx context.Context, obj store.Object) (*store.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[obj.Key]; ok {
		return nil, coreerrors.ErrConflict(fmt.Sprintf("%s %q already exists", obj.Kind, obj.Key))
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	s.objects[obj.Key] = obj
	s.statuses[obj.Key] = model.ObjPsStatus{
		Key:        obj.Key,
		Wanted:     model.StatusCreate,
		Actual:     model.StatusCreate,
		PrevWanted: model.StatusCreate,
		PrevActual: model.StatusCreate,
		UpdatedAt:  obj.CreatedAt,
	}
	out := obj
	return &out, nil
}

func (s *Store) ReadObjectByKey(ctx context.Context, kind model.Kind, key string) (*store.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok || obj.Kind != kind {
		return nil, coreerrors.ErrNotFound(string(kind), key)
	}
	out := obj
	return &out, nil
}

func (s *Store) ReadByFilter(ctx context.Context, kind model.Kind, filter *model.Filter) ([]store.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Object
	for _, obj := range s.objects {
		if obj.Kind != kind {
			continue
		}
		if !matchesObject(obj, filter) {
			continue
		}
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return applyPagination(out, filter).([]store.Object), nil
}

func matchesObject(obj store.Object, filter *model.Filter) bool {
	if filter == nil {
		return true
	}
	for _, term := range filter.Terms {
		var field string
		switch term.Field {
		case "namespace":
			field = obj.Namespace
		case "name":
			field = obj.Name
		case "key":
			field = obj.Key
		default:
			continue // unknown fields are ignored, not rejected
		}
		if !matchTerm(field, term) {
			return false
		}
	}
	return true
}

func matchTerm(field string, term model.FilterTerm) bool {
	switch term.Clause {
	case model.ClauseEq:
		return field == fmt.Sprintf("%v", term.Value)
	case model.ClauseLike:
		pattern := fmt.Sprintf("%v", term.Value)
		return strings.Contains(field, strings.Trim(pattern, "%"))
	case model.ClauseIn:
		values, _ := term.Value.([]interface{})
		for _, v := range values {
			if field == fmt.Sprintf("%v", v) {
				return true
			}
		}
		return false
	case model.ClauseIsNull:
		return field == ""
	default:
		return true
	}
}

func applyPagination(slice interface{}, filter *model.Filter) interface{} {
	if filter == nil || (filter.Limit == 0 && filter.Offset == 0) {
		return slice
	}
	switch v := slice.(type) {
	case []model.Namespace:
		return paginate(v, filter.Offset, filter.Limit)
	case []store.Object:
		return paginate(v, filter.Offset, filter.Limit)
	case []model.Event:
		return paginate(v, filter.Offset, filter.Limit)
	case []model.Process:
		return paginate(v, filter.Offset, filter.Limit)
	default:
		return slice
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) UpdateObjectSpec(ctx context.Context, objectKey, newSpecKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectKey]
	if !ok {
		return coreerrors.ErrNotFound("object", objectKey)
	}
	obj.SpecKey = newSpecKey
	s.objects[objectKey] = obj
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectKey]; !ok {
		return coreerrors.ErrNotFound("object", objectKey)
	}
	delete(s.objects, objectKey)
	delete(s.statuses, objectKey)
	return nil
}

func (s *Store) UpsertProcess(ctx context.Context, p store.ProcessPartial) (*model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := s.processes[p.Key]
	created := now
	if ok {
		created = existing.CreatedAt
	}
	proc := model.Process{
		Key:       p.Key,
		Name:      p.Name,
		Kind:      p.Kind,
		OwnerKey:  p.OwnerKey,
		NodeKey:   p.NodeKey,
		Labels:    p.Labels,
		Data:      p.Data,
		CreatedAt: created,
		UpdatedAt: now,
	}
	s.processes[p.Key] = proc
	return &proc, nil
}

func (s *Store) DeleteProcess(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[id]; !ok {
		return coreerrors.ErrNotFound("process", id)
	}
	delete(s.processes, id)
	return nil
}

func (s *Store) ReadProcessesByKindKey(ctx context.Context, kind model.Kind, ownerKey string) ([]model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Process
	for _, p := range s.processes {
		if p.Kind == kind && p.OwnerKey == ownerKey {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ListAllProcesses(ctx context.Context, filter *model.Filter) ([]model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Process, 0, len(s.processes))
	for _, p := range s.processes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return applyPagination(out, filter).([]model.Process), nil
}

func (s *Store) ReadStatus(ctx context.Context, objectKey string) (*model.ObjPsStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[objectKey]
	if !ok {
		return nil, coreerrors.ErrNotFound("status", objectKey)
	}
	return &st, nil
}

func (s *Store) UpdateStatus(ctx context.Context, objectKey string, patch store.StatusPatch) (*model.ObjPsStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.statuses[objectKey]
	if !ok {
		return nil, coreerrors.ErrNotFound("status", objectKey)
	}
	if current.Actual != patch.PrevActual {
		return nil, coreerrors.ErrConflict(store.ErrCASConflict).
			WithDetails("object_key", objectKey).
			WithDetails("current_actual", string(current.Actual)).
			WithDetails("expected_prev_actual", string(patch.PrevActual))
	}
	next := current
	next.PrevActual = current.Actual
	next.PrevWanted = current.Wanted
	if patch.Wanted != nil {
		next.Wanted = *patch.Wanted
	}
	if patch.Actual != nil {
		next.Actual = *patch.Actual
	}
	next.UpdatedAt = time.Now().UTC()
	s.statuses[objectKey] = next
	return &next, nil
}

func (s *Store) AppendEvent(ctx context.Context, e store.EventPartial) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := model.Event{
		Key:       uuid.New().String(),
		Kind:      e.Kind,
		Reason:    e.Reason,
		Action:    e.Action,
		ActorKey:  e.ActorKey,
		ActorKind: e.ActorKind,
		Note:      e.Note,
		CreatedAt: time.Now().UTC(),
	}
	s.events = append(s.events, ev)
	return &ev, nil
}

func (s *Store) ReadEvents(ctx context.Context, filter *model.Filter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]model.Event, len(s.events))
	copy(events, s.events)
	if filter != nil {
		var filtered []model.Event
		for _, ev := range events {
			if matchesEvent(ev, filter) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	return applyPagination(events, filter).([]model.Event), nil
}

func matchesEvent(ev model.Event, filter *model.Filter) bool {
	for _, term := range filter.Terms {
		var field string
		switch term.Field {
		case "actor_key":
			field = ev.ActorKey
		case "actor_kind":
			field = string(ev.ActorKind)
		case "action":
			field = ev.Action
		case "kind":
			field = string(ev.Kind)
		default:
			continue
		}
		if !matchTerm(field, term) {
			return false
		}
	}
	return true
}

func (s *Store) UpsertNode(ctx context.Context, n model.Node) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		if existing, ok := s.nodes[n.Key]; ok {
			n.CreatedAt = existing.CreatedAt
		} else {
			n.CreatedAt = time.Now().UTC()
		}
	}
	s.nodes[n.Key] = n
	return &n, nil
}

func (s *Store) ReadNode(ctx context.Context, key string) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[key]
	if !ok {
		return nil, coreerrors.ErrNotFound("node", key)
	}
	return &n, nil
}

var _ interface {
	Close() error
} = (*Store)(nil)
