package dto

import (
	"bytes"
	"encoding/json"
)

// Leaders is an optional card section. An absent value marshals to null and
// the section is not rendered; a present value always marshals to a list.
type Leaders struct {
	names   []string
	present bool
}

// NoLeaders is the absent variant.
func NoLeaders() Leaders {
	return Leaders{}
}

// SomeLeaders is the present variant.
func SomeLeaders(names ...string) Leaders {
	return Leaders{names: append([]string{}, names...), present: true}
}

// LeadersFrom treats an empty list as absent.
func LeadersFrom(names []string) Leaders {
	if len(names) == 0 {
		return NoLeaders()
	}
	return SomeLeaders(names...)
}

// Present reports whether the section should be rendered.
func (l Leaders) Present() bool {
	return l.present
}

// Names returns the leader names, nil when absent.
func (l Leaders) Names() []string {
	if !l.present {
		return nil
	}
	return append([]string{}, l.names...)
}

// MarshalJSON implements json.Marshaler.
func (l Leaders) MarshalJSON() ([]byte, error) {
	if !l.present {
		return []byte("null"), nil
	}
	return json.Marshal(l.Names())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Leaders) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = NoLeaders()
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*l = SomeLeaders(names...)
	return nil
}
