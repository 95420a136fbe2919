// Package postgres implements store.Store against PostgreSQL via
// database/sql and github.com/lib/pq, with schema evolution handled by
// github.com/golang-migrate/migrate/v4 (see migrate.go).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// Store is a PostgreSQL-backed store.Store. The database is expected to
// already have migrations applied via Migrate.
type Store struct {
	db *sql.DB
}

// New wraps an already-open, already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func classifyErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return coreerrors.ErrNotFound(operation, "")
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return coreerrors.ErrConflict(fmt.Sprintf("%s: %s", operation, pqErr.Message))
		case "foreign_key_violation":
			return coreerrors.ErrPrecondition(fmt.Sprintf("%s: %s", operation, pqErr.Message))
		}
	}
	return coreerrors.ErrTransient(operation, err)
}

func (s *Store) CreateNamespace(ctx context.Context, name string) (*model.Namespace, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (name, created_at) VALUES ($1, $2)`, name, now)
	if err != nil {
		return nil, classifyErr("create_namespace", err)
	}
	return &model.Namespace{Name: name, CreatedAt: now}, nil
}

func (s *Store) ReadNamespace(ctx context.Context, name string) (*model.Namespace, error) {
	var ns model.Namespace
	err := s.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM namespaces WHERE name = $1`, name,
	).Scan(&ns.Name, &ns.CreatedAt)
	if err != nil {
		return nil, classifyErr("read_namespace", err)
	}
	return &ns, nil
}

func (s *Store) ListNamespaces(ctx context.Context, filter *model.Filter) ([]model.Namespace, error) {
	query, args := buildSelect("SELECT name, created_at FROM namespaces", nil, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr("list_namespaces", err)
	}
	defer rows.Close()

	var out []model.Namespace
	for rows.Next() {
		var ns model.Namespace
		if err := rows.Scan(&ns.Name, &ns.CreatedAt); err != nil {
			return nil, classifyErr("list_namespaces", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (s *Store) DeleteNamespace(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM namespaces WHERE name = $1`, name)
	if err != nil {
		return classifyErr("delete_namespace", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerrors.ErrNotFound("namespace", name)
	}
	return nil
}

func (s *Store) CreateSpec(ctx context.Context, kind model.Kind, ownerKey string, data []byte, version string) (*model.Spec, error) {
	sp := model.Spec{
		Key:       uuid.New().String(),
		Kind:      kind,
		OwnerKey:  ownerKey,
		Version:   version,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO specs (key, kind, owner_key, version, data, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		sp.Key, sp.Kind, sp.OwnerKey, sp.Version, sp.Data, sp.CreatedAt)
	if err != nil {
		return nil, classifyErr("create_spec", err)
	}
	return &sp, nil
}

func (s *Store) ReadSpec(ctx context.Context, specKey string) (*model.Spec, error) {
	var sp model.Spec
	err := s.db.QueryRowContext(ctx,
		`SELECT key, kind, owner_key, version, data, created_at FROM specs WHERE key = $1`, specKey,
	).Scan(&sp.Key, &sp.Kind, &sp.OwnerKey, &sp.Version, &sp.Data, &sp.CreatedAt)
	if err != nil {
		return nil, classifyErr("read_spec", err)
	}
	return &sp, nil
}

func (s *Store) CreateObject(ctx context.Context, obj store.Object) (*store.Object, error) {
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(obj.Data)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("data", err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyErr("create_object", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO objects (key, name, namespace, kind, spec_key, data, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		obj.Key, obj.Name, obj.Namespace, obj.Kind, obj.SpecKey, data, obj.CreatedAt)
	if err != nil {
		return nil, classifyErr("create_object", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO object_statuses (key, wanted, prev_wanted, actual, prev_actual, updated_at) VALUES ($1,$2,$2,$2,$2,$3)`,
		obj.Key, string(model.StatusCreate), obj.CreatedAt)
	if err != nil {
		return nil, classifyErr("create_object", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyErr("create_object", err)
	}
	out := obj
	return &out, nil
}

func scanObject(row interface{ Scan(...interface{}) error }) (*store.Object, error) {
	var obj store.Object
	var raw []byte
	if err := row.Scan(&obj.Key, &obj.Name, &obj.Namespace, &obj.Kind, &obj.SpecKey, &raw, &obj.CreatedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var data interface{}
		if err := json.Unmarshal(raw, &data); err == nil {
			obj.Data = data
		}
	}
	return &obj, nil
}

func (s *Store) ReadObjectByKey(ctx context.Context, kind model.Kind, key string) (*store.Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, name, namespace, kind, spec_key, data, created_at FROM objects WHERE key = $1 AND kind = $2`,
		key, kind)
	obj, err := scanObject(row)
	if err != nil {
		return nil, classifyErr("read_object_by_key", err)
	}
	return obj, nil
}

func (s *Store) ReadByFilter(ctx context.Context, kind model.Kind, filter *model.Filter) ([]store.Object, error) {
	base := "SELECT key, name, namespace, kind, spec_key, data, created_at FROM objects"
	query, args := buildSelect(base, []model.FilterTerm{{Field: "kind", Clause: model.ClauseEq, Value: string(kind)}}, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr("read_by_filter", err)
	}
	defer rows.Close()

	var out []store.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, classifyErr("read_by_filter", err)
		}
		out = append(out, *obj)
	}
	return out, rows.Err()
}

func (s *Store) UpdateObjectSpec(ctx context.Context, objectKey, newSpecKey string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE objects SET spec_key = $1 WHERE key = $2`, newSpecKey, objectKey)
	if err != nil {
		return classifyErr("update_object_spec", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerrors.ErrNotFound("object", objectKey)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = $1`, objectKey)
	if err != nil {
		return classifyErr("delete_object", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerrors.ErrNotFound("object", objectKey)
	}
	return nil
}

func (s *Store) UpsertProcess(ctx context.Context, p store.ProcessPartial) (*model.Process, error) {
	now := time.Now().UTC()
	labels, err := json.Marshal(p.Labels)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("labels", err.Error())
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processes (key, name, kind, owner_key, node_key, labels, data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name, kind = EXCLUDED.kind, owner_key = EXCLUDED.owner_key,
			node_key = EXCLUDED.node_key, labels = EXCLUDED.labels, data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		p.Key, p.Name, p.Kind, p.OwnerKey, p.NodeKey, labels, p.Data, now)
	if err != nil {
		return nil, classifyErr("upsert_process", err)
	}
	return &model.Process{
		Key: p.Key, Name: p.Name, Kind: p.Kind, OwnerKey: p.OwnerKey,
		NodeKey: p.NodeKey, Labels: p.Labels, Data: p.Data, UpdatedAt: now,
	}, nil
}

func (s *Store) DeleteProcess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processes WHERE key = $1`, id)
	if err != nil {
		return classifyErr("delete_process", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerrors.ErrNotFound("process", id)
	}
	return nil
}

func scanProcess(row interface{ Scan(...interface{}) error }) (*model.Process, error) {
	var p model.Process
	var labels []byte
	if err := row.Scan(&p.Key, &p.Name, &p.Kind, &p.OwnerKey, &p.NodeKey, &labels, &p.Data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		_ = json.Unmarshal(labels, &p.Labels)
	}
	return &p, nil
}

func (s *Store) ReadProcessesByKindKey(ctx context.Context, kind model.Kind, ownerKey string) ([]model.Process, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, name, kind, owner_key, node_key, labels, data, created_at, updated_at FROM processes WHERE kind = $1 AND owner_key = $2`,
		kind, ownerKey)
	if err != nil {
		return nil, classifyErr("read_processes_by_kind_key", err)
	}
	defer rows.Close()
	var out []model.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, classifyErr("read_processes_by_kind_key", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) ListAllProcesses(ctx context.Context, filter *model.Filter) ([]model.Process, error) {
	base := "SELECT key, name, kind, owner_key, node_key, labels, data, created_at, updated_at FROM processes"
	query, args := buildSelect(base, nil, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr("list_all_processes", err)
	}
	defer rows.Close()
	var out []model.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, classifyErr("list_all_processes", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) ReadStatus(ctx context.Context, objectKey string) (*model.ObjPsStatus, error) {
	var st model.ObjPsStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT key, wanted, prev_wanted, actual, prev_actual, updated_at FROM object_statuses WHERE key = $1`,
		objectKey,
	).Scan(&st.Key, &st.Wanted, &st.PrevWanted, &st.Actual, &st.PrevActual, &st.UpdatedAt)
	if err != nil {
		return nil, classifyErr("read_status", err)
	}
	return &st, nil
}

// UpdateStatus applies patch under CAS: the UPDATE's WHERE clause requires
// actual = patch.PrevActual, so a losing writer's statement affects zero
// rows and is reported as a Conflict rather than silently overwriting.
func (s *Store) UpdateStatus(ctx context.Context, objectKey string, patch store.StatusPatch) (*model.ObjPsStatus, error) {
	current, err := s.ReadStatus(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	next := *current
	next.PrevActual = current.Actual
	next.PrevWanted = current.Wanted
	if patch.Wanted != nil {
		next.Wanted = *patch.Wanted
	}
	if patch.Actual != nil {
		next.Actual = *patch.Actual
	}
	next.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE object_statuses
		SET wanted = $1, prev_wanted = $2, actual = $3, prev_actual = $4, updated_at = $5
		WHERE key = $6 AND actual = $7`,
		next.Wanted, next.PrevWanted, next.Actual, next.PrevActual, next.UpdatedAt,
		objectKey, patch.PrevActual)
	if err != nil {
		return nil, classifyErr("update_status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, coreerrors.ErrConflict(store.ErrCASConflict).
			WithDetails("object_key", objectKey).
			WithDetails("expected_prev_actual", string(patch.PrevActual))
	}
	return &next, nil
}

func (s *Store) AppendEvent(ctx context.Context, e store.EventPartial) (*model.Event, error) {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (key, kind, reason, action, actor_key, actor_kind, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.Key, ev.Kind, ev.Reason, ev.Action, ev.ActorKey, ev.ActorKind, ev.Note, ev.CreatedAt)
	if err != nil {
		return nil, classifyErr("append_event", err)
	}
	return &ev, nil
}

func (s *Store) ReadEvents(ctx context.Context, filter *model.Filter) ([]model.Event, error) {
	base := "SELECT key, kind, reason, action, actor_key, actor_kind, note, created_at FROM events"
	query, args := buildSelect(base, nil, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr("read_events", err)
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.Key, &ev.Kind, &ev.Reason, &ev.Action, &ev.ActorKey, &ev.ActorKind, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, classifyErr("read_events", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) UpsertNode(ctx context.Context, n model.Node) (*model.Node, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (key, ip_address, advertise_addr, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (key) DO UPDATE SET ip_address = EXCLUDED.ip_address, advertise_addr = EXCLUDED.advertise_addr`,
		n.Key, n.IPAddress, n.AdvertiseAddr, n.CreatedAt)
	if err != nil {
		return nil, classifyErr("upsert_node", err)
	}
	return &n, nil
}

func (s *Store) ReadNode(ctx context.Context, key string) (*model.Node, error) {
	var n model.Node
	err := s.db.QueryRowContext(ctx,
		`SELECT key, ip_address, advertise_addr, created_at FROM nodes WHERE key = $1`, key,
	).Scan(&n.Key, &n.IPAddress, &n.AdvertiseAddr, &n.CreatedAt)
	if err != nil {
		return nil, classifyErr("read_node", err)
	}
	return &n, nil
}

// buildSelect translates a model.Filter (spec.md §4.1's predicate tree)
// into a WHERE/ORDER BY/LIMIT/OFFSET suffix appended to base, alongside the
// fixed terms every caller pins (e.g. kind = $1). Unknown fields are
// rejected rather than silently ignored, since this is the real database.
func buildSelect(base string, fixed []model.FilterTerm, filter *model.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	n := 0
	next := func() int { n++; return n }

	addTerm := func(t model.FilterTerm) {
		col := t.Field
		switch t.Clause {
		case model.ClauseEq:
			conds = append(conds, fmt.Sprintf("%s = $%d", col, next()))
			args = append(args, t.Value)
		case model.ClauseIn:
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, next()))
			args = append(args, pq.Array(toStringSlice(t.Value)))
		case model.ClauseNotIn:
			conds = append(conds, fmt.Sprintf("NOT (%s = ANY($%d))", col, next()))
			args = append(args, pq.Array(toStringSlice(t.Value)))
		case model.ClauseLike:
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", col, next()))
			args = append(args, fmt.Sprintf("%%%v%%", t.Value))
		case model.ClauseGt:
			conds = append(conds, fmt.Sprintf("%s > $%d", col, next()))
			args = append(args, t.Value)
		case model.ClauseLt:
			conds = append(conds, fmt.Sprintf("%s < $%d", col, next()))
			args = append(args, t.Value)
		case model.ClauseIsNull:
			conds = append(conds, fmt.Sprintf("%s IS NULL", col))
		case model.ClauseContains:
			conds = append(conds, fmt.Sprintf("data @> $%d", next()))
			args = append(args, t.Value)
		}
	}

	for _, t := range fixed {
		addTerm(t)
	}
	if filter != nil {
		for _, t := range filter.Terms {
			addTerm(t)
		}
	}

	query := base
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter != nil && len(filter.Order) > 0 {
		var orderParts []string
		for _, o := range filter.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			orderParts = append(orderParts, fmt.Sprintf("%s %s", o.Field, dir))
		}
		query += " ORDER BY " + strings.Join(orderParts, ", ")
	}
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter != nil && filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

func toStringSlice(v interface{}) []string {
	values, _ := v.([]interface{})
	out := make([]string, 0, len(values))
	for _, val := range values {
		out = append(out, fmt.Sprintf("%v", val))
	}
	return out
}
