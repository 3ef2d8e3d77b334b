package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key addresses a match in the realtime tree. Schedules stored as dense
// arrays use integer keys; object-shaped schedules use string keys.
type Key struct {
	raw   string
	index bool
}

func IndexKey(i int) Key {
	return Key{raw: strconv.Itoa(i), index: true}
}

func StringKey(s string) Key {
	return Key{raw: s}
}

func (k Key) String() string { return k.raw }

func (k Key) IsZero() bool { return k.raw == "" }

func (k Key) IsIndex() bool { return k.index }

// Valid reports whether k can be used as a single realtime tree path segment.
func (k Key) Valid() bool {
	return k.raw != "" && !strings.ContainsAny(k.raw, ".#$[]/")
}

func (k Key) MarshalJSON() ([]byte, error) {
	switch {
	case k.raw == "":
		return []byte("null"), nil
	case k.index:
		return []byte(k.raw), nil
	default:
		return json.Marshal(k.raw)
	}
}

// maxIndex is the largest integer a float64 holds exactly.
const maxIndex = 1 << 53

func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = Key{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = StringKey(strings.TrimSpace(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f < 0 || f > maxIndex || f != math.Trunc(f) {
		return fmt.Errorf("firebaseIndex %s is not a non-negative integer or string", data)
	}
	*k = IndexKey(int(f))
	return nil
}

// keyFromObject maps an object key back to a Key, treating canonical
// non-negative integers as dense indexes.
func keyFromObject(name string) Key {
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && strconv.Itoa(i) == name {
		return IndexKey(i)
	}
	return StringKey(name)
}
