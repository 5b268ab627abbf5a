package faker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Params gives methods access to a call's arguments. A parameter is looked up
// by keyword first and then by position.
type Params struct {
	args   []any
	kwargs map[string]any
}

// NewParams wraps positional and keyword arguments.
func NewParams(args []any, kwargs map[string]any) Params {
	return Params{args: args, kwargs: kwargs}
}

func (p Params) get(pos int, name string) (any, bool) {
	if v, ok := p.kwargs[name]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(p.args) {
		return p.args[pos], true
	}
	return nil, false
}

// Int returns an integer parameter or def.
func (p Params) Int(pos int, name string, def int) (int, error) {
	v, ok := p.get(pos, name)
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", name, n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%s: unexpected type %T", name, v)
}

// Float returns a float parameter or def.
func (p Params) Float(pos int, name string, def float64) (float64, error) {
	v, ok := p.get(pos, name)
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", name, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s: unexpected type %T", name, v)
}

// String returns a string parameter or def. Scalars are formatted.
func (p Params) String(pos int, name, def string) string {
	v, ok := p.get(pos, name)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns a boolean parameter or def.
func (p Params) Bool(pos int, name string, def bool) bool {
	v, ok := p.get(pos, name)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if x, err := strconv.ParseBool(b); err == nil {
			return x
		}
	}
	return def
}

// List returns a list parameter. A missing parameter is an error.
func (p Params) List(pos int, name string) ([]any, error) {
	v, ok := p.get(pos, name)
	if !ok {
		return nil, fmt.Errorf("%s: required", name)
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	case string:
		out := make([]any, 0, len(l))
		for _, r := range l {
			out = append(out, string(r))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected a list, got %T", name, v)
}

// Year returns a year parameter as the first instant of that year. Dates
// ("2001-02-03") and RFC 3339 timestamps are also accepted.
func (p Params) Year(pos int, name string, def int) (time.Time, error) {
	v, ok := p.get(pos, name)
	if ok {
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			for _, layout := range []string{time.RFC3339, time.DateOnly} {
				if ts, err := time.Parse(layout, t); err == nil {
					return ts, nil
				}
			}
		}
	}
	y, err := p.Int(pos, name, def)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), nil
}

// mapParams maps arguments onto a gofakeit function's declared parameters,
// keyword by field name and positional by declaration order.
func (p Params) mapParams(info *gofakeit.Info) (*gofakeit.MapParams, error) {
	mp := gofakeit.NewMapParams()
	if len(p.args) > len(info.Params) {
		return nil, fmt.Errorf("%d positional arguments given, %s takes %d", len(p.args), info.Display, len(info.Params))
	}
	known := map[string]bool{}
	for i, prm := range info.Params {
		known[prm.Field] = true
		v, ok := p.get(i, prm.Field)
		if !ok {
			continue
		}
		switch l := v.(type) {
		case []any:
			for _, x := range l {
				mp.Add(prm.Field, fmt.Sprint(x))
			}
		default:
			mp.Add(prm.Field, fmt.Sprint(v))
		}
	}
	for k := range p.kwargs {
		if !known[k] {
			return nil, fmt.Errorf("unexpected keyword argument %q", k)
		}
	}
	return mp, nil
}
