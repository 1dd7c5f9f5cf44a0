package codec

import (
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	metadataEntryKey   = 1
	metadataEntryValue = 2
)

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMetadataField encodes an open metadata map as repeated string
// key/value entries. Non-string values are JSON-marshaled; keys are sorted
// so the same map always encodes to the same bytes.
func appendMetadataField(b []byte, num protowire.Number, meta map[string]any) []byte {
	if len(meta) == 0 {
		return b
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendStringField(entry, metadataEntryKey, k)
		entry = appendStringField(entry, metadataEntryValue, metadataValueString(meta[k]))
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func metadataValueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// consumeMetadataEntry decodes one key/value entry into meta. Values that
// parse as JSON come back structured; everything else stays a raw string.
// This path never fails on value content, only on broken framing.
func consumeMetadataEntry(typ protowire.Type, payload []byte, meta map[string]any) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("metadata entry: unexpected wire type %d", typ)
	}
	var key, val string
	err := walkFields(payload, func(num protowire.Number, t protowire.Type, p []byte) error {
		switch num {
		case metadataEntryKey:
			v, err := fieldString(t, p)
			if err != nil {
				return err
			}
			key = v
		case metadataEntryValue:
			v, err := fieldString(t, p)
			if err != nil {
				return err
			}
			val = v
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("metadata entry: %v", err)
	}
	if key == "" {
		return nil
	}
	var parsed any
	if json.Unmarshal([]byte(val), &parsed) == nil {
		meta[key] = parsed
	} else {
		meta[key] = val
	}
	return nil
}

// walkFields iterates the top-level fields of a wire-format buffer, handing
// each tag and its raw payload to fn. Fields fn does not recognize are
// skipped, which is what keeps old readers compatible with newer writers.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("bad tag: %v", protowire.ParseError(n))
		}
		data = data[n:]
		size := protowire.ConsumeFieldValue(num, typ, data)
		if size < 0 {
			return fmt.Errorf("field %d: %v", num, protowire.ParseError(size))
		}
		if err := fn(num, typ, data[:size]); err != nil {
			return err
		}
		data = data[size:]
	}
	return nil
}

func fieldString(typ protowire.Type, payload []byte) (string, error) {
	if typ != protowire.BytesType {
		return "", fmt.Errorf("expected length-delimited field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeString(payload)
	if n < 0 {
		return "", protowire.ParseError(n)
	}
	return v, nil
}

func fieldVarint(typ protowire.Type, payload []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("expected varint field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(payload)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}
