package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DomainStarLog is the domain-separation prefix for star log fingerprints.
// Version suffix enables future algorithm migration.
const DomainStarLog = "cryptoverse/starlog/v1"

// Fingerprint computes a content digest of a star log.
//
// The digest covers every field, including the opaque events, serialized as
// canonical JSON (sorted keys, NFC-normalized strings, no HTML escaping) and
// hashed with SHA-256 under DomainStarLog. Two records with the same identity
// but different content have different fingerprints, which is how caches
// detect that a replace-by-identity write actually changed something.
//
// This is NOT ledger validation: the server's Hash is never recomputed.
func Fingerprint(s StarLog) (string, error) {
	events := make([]any, len(s.Events))
	for i, raw := range s.Events {
		v, err := decodeNumbers(raw)
		if err != nil {
			return "", fmt.Errorf("fingerprint: events[%d]: %w", i, err)
		}
		events[i] = v
	}

	obj := map[string]any{
		"log_header":    s.LogHeader,
		"nonce":         s.Nonce,
		"hash":          s.Hash,
		"previous_hash": s.PreviousHash,
		"difficulty":    s.Difficulty,
		"height":        s.Height,
		"version":       s.Version,
		"time":          s.Time,
		"create_time":   s.CreateTime,
		"events_hash":   s.EventsHash,
		"events":        events,
	}

	data, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainStarLog, data), nil
}

// MustFingerprint is Fingerprint for records known to carry valid JSON events.
// Panics on error; intended for tests and already-decoded payloads.
func MustFingerprint(s StarLog) string {
	fp, err := Fingerprint(s)
	if err != nil {
		panic(err)
	}
	return fp
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// decodeNumbers decodes raw JSON keeping numbers as json.Number so the
// canonical form preserves the server's numeric text exactly.
func decodeNumbers(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeCanonicalString(buf, val)
	case json.Number:
		buf.WriteString(val.String())
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysUTF16)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// Encoder adds a trailing newline
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// compareKeysUTF16 orders object keys by UTF-16 code units (RFC 8785).
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}
