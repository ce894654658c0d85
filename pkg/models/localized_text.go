package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LocalizedText is an ordered locale → string mapping for project display
// fields. Insertion order is significant: when neither the requested locale
// nor "en" is present, resolution falls back to the first inserted entry.
// Stored in a json (not jsonb) column so the database preserves key order.
type LocalizedText struct {
	entries []localizedEntry
}

type localizedEntry struct {
	Locale string
	Value  string
}

// NewLocalizedText builds a LocalizedText from ordered locale/value pairs.
// Pairs must have even length: locale1, value1, locale2, value2, ...
func NewLocalizedText(pairs ...string) LocalizedText {
	var lt LocalizedText
	for i := 0; i+1 < len(pairs); i += 2 {
		lt.Set(pairs[i], pairs[i+1])
	}
	return lt
}

// Get returns the value for an exact locale match.
func (lt LocalizedText) Get(locale string) (string, bool) {
	for _, e := range lt.entries {
		if e.Locale == locale {
			return e.Value, true
		}
	}
	return "", false
}

// First returns the first inserted entry's value.
func (lt LocalizedText) First() (string, bool) {
	if len(lt.entries) == 0 {
		return "", false
	}
	return lt.entries[0].Value, true
}

// Set inserts or replaces a locale's value. Replacing keeps the original
// position; inserting appends.
func (lt *LocalizedText) Set(locale, value string) {
	for i, e := range lt.entries {
		if e.Locale == locale {
			lt.entries[i].Value = value
			return
		}
	}
	lt.entries = append(lt.entries, localizedEntry{Locale: locale, Value: value})
}

// Locales returns the locale keys in insertion order.
func (lt LocalizedText) Locales() []string {
	keys := make([]string, 0, len(lt.entries))
	for _, e := range lt.entries {
		keys = append(keys, e.Locale)
	}
	return keys
}

// Len returns the number of entries.
func (lt LocalizedText) Len() int {
	return len(lt.entries)
}

// MarshalJSON renders an ordered JSON object.
func (lt LocalizedText) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range lt.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Locale)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving document key order.
func (lt *LocalizedText) UnmarshalJSON(data []byte) error {
	lt.entries = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("localized text must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		locale, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("localized text key must be a string")
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("localized text value for %q: %w", locale, err)
		}
		lt.Set(locale, value)
	}

	// Consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Value implements driver.Valuer for database serialization.
func (lt LocalizedText) Value() (driver.Value, error) {
	if len(lt.entries) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(lt)
}

// Scan implements sql.Scanner for database deserialization.
func (lt *LocalizedText) Scan(value interface{}) error {
	if value == nil {
		lt.entries = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into LocalizedText", value)
	}

	return json.Unmarshal(data, lt)
}
