package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalPayloadHash hashes a request body in a key-order-independent way
// so a retried request with reordered JSON keys still matches its claim.
// Idempotency-control fields (the key itself etc.) are stripped from the
// top level before hashing.
func CanonicalPayloadHash(raw []byte, stripFields ...string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return "", err
	}
	if m, ok := payload.(map[string]interface{}); ok {
		for _, field := range stripFields {
			delete(m, field)
		}
	}
	var buf bytes.Buffer
	if err := writeCanonicalJSON(&buf, payload); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func writeCanonicalJSON(buf *bytes.Buffer, v interface{}) error {
	switch value := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			if err := writeCanonicalJSON(buf, value[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		itemJSON, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(itemJSON)
	}
	return nil
}
