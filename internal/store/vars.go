package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// VarScope selects one of the two independent variable tables.
type VarScope string

const (
	// ScopeContext is the per-context variable mapping (the `var` verb).
	ScopeContext VarScope = "context"
	// ScopeGlobal is the global variable mapping (the `global` verb).
	ScopeGlobal VarScope = "global"
)

func (s VarScope) table() string {
	if s == ScopeGlobal {
		return "globals"
	}
	return "variables"
}

// Value is a tagged union over the supported variable types.
type Value struct {
	Type  string  `json:"type"` // "string", "int", "float", "bool", "list"
	Str   string  `json:"-"`
	Int   int64   `json:"-"`
	Float float64 `json:"-"`
	Bool  bool    `json:"-"`
	List  []Value `json:"-"`
}

// ParseValue infers the value type from its textual form: int, float, bool,
// JSON list, then string.
func ParseValue(raw string) Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Value{Type: "int", Int: i}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{Type: "float", Float: f}
	}
	if raw == "true" || raw == "false" {
		return Value{Type: "bool", Bool: raw == "true"}
	}
	if len(raw) > 1 && raw[0] == '[' {
		var items []any
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			list := make([]Value, len(items))
			for i, item := range items {
				list[i] = fromAny(item)
			}
			return Value{Type: "list", List: list}
		}
	}
	return Value{Type: "string", Str: raw}
}

func fromAny(v any) Value {
	switch t := v.(type) {
	case string:
		return ParseValue(t)
	case float64:
		if t == float64(int64(t)) {
			return Value{Type: "int", Int: int64(t)}
		}
		return Value{Type: "float", Float: t}
	case bool:
		return Value{Type: "bool", Bool: t}
	case []any:
		list := make([]Value, len(t))
		for i, item := range t {
			list[i] = fromAny(item)
		}
		return Value{Type: "list", List: list}
	default:
		return Value{Type: "string", Str: ""}
	}
}

// String renders the value in its textual form.
func (v Value) String() string {
	switch v.Type {
	case "int":
		return strconv.FormatInt(v.Int, 10)
	case "float":
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case "bool":
		return strconv.FormatBool(v.Bool)
	case "list":
		b, _ := json.Marshal(v.toAny())
		return string(b)
	default:
		return v.Str
	}
}

func (v Value) toAny() any {
	switch v.Type {
	case "int":
		return v.Int
	case "float":
		return v.Float
	case "bool":
		return v.Bool
	case "list":
		items := make([]any, len(v.List))
		for i, item := range v.List {
			items[i] = item.toAny()
		}
		return items
	default:
		return v.Str
	}
}

// MarshalJSON renders the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

// SetVariable stores a value under name within the scope.
func (s *Store) SetVariable(ctx context.Context, scope VarScope, name string, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return err
	}

	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+scope.table()+` (name, value, value_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value,
			value_type = excluded.value_type, updated_at = excluded.updated_at`,
		name, value.String(), value.Type, ts, ts)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return nil
}

// GetVariable returns the value stored under name, or nil when absent.
func (s *Store) GetVariable(ctx context.Context, scope VarScope, name string) (*Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	var raw, valueType string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, value_type FROM `+scope.table()+` WHERE name = ?`, name).
		Scan(&raw, &valueType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	v := decodeValue(raw, valueType)
	return &v, nil
}

// decodeValue reconstructs a Value from its stored text and type tag.
func decodeValue(raw, valueType string) Value {
	switch valueType {
	case "int":
		i, _ := strconv.ParseInt(raw, 10, 64)
		return Value{Type: "int", Int: i}
	case "float":
		f, _ := strconv.ParseFloat(raw, 64)
		return Value{Type: "float", Float: f}
	case "bool":
		return Value{Type: "bool", Bool: raw == "true"}
	case "list":
		v := ParseValue(raw)
		if v.Type == "list" {
			return v
		}
		return Value{Type: "list"}
	default:
		return Value{Type: "string", Str: raw}
	}
}

// DeleteVariable removes a variable; reports whether it existed.
func (s *Store) DeleteVariable(ctx context.Context, scope VarScope, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+scope.table()+` WHERE name = ?`, name)
	if err != nil {
		return false, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}
