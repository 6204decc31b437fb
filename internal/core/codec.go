package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// recordJSON is the persisted and exported shape of a Record.
type recordJSON struct {
	ID        int64       `json:"id"`
	Type      string      `json:"type"`
	Date      string      `json:"date"`
	Content   string      `json:"content"`
	Method    string      `json:"method"`
	Amount    json.Number `json:"amount"`
	Timestamp int64       `json:"timestamp"`
}

// MarshalJSON writes a record that decoded with issues back as it arrived.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Issues) > 0 && len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(recordJSON{
		ID:        r.ID,
		Type:      r.Type,
		Date:      r.Date.String(),
		Content:   r.Content,
		Method:    r.Method,
		Amount:    json.Number(r.Amount.String()),
		Timestamp: r.Timestamp,
	})
}

// UnmarshalJSON decodes a record leniently. A field holding the wrong JSON type,
// or a value that cannot be coerced, is left at its zero value and named in
// Issues, and the element's original bytes are kept for re-encoding. Only
// malformed JSON syntax is an error.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return err
		}
		// valid JSON, but not an object
		r.Issues = append(r.Issues, "record")
		r.keepRaw(data)
		return nil
	}

	var ok bool
	if r.ID, ok = coerceInt(fields["id"]); !ok {
		r.Issues = append(r.Issues, "id")
	}
	if r.Type, ok = coerceString(fields["type"]); !ok {
		r.Issues = append(r.Issues, "type")
	}
	if r.Date, ok = coerceDate(fields["date"]); !ok {
		r.Issues = append(r.Issues, "date")
	}
	if r.Content, ok = coerceString(fields["content"]); !ok {
		r.Issues = append(r.Issues, "content")
	}
	if r.Method, ok = coerceString(fields["method"]); !ok {
		r.Issues = append(r.Issues, "method")
	}
	if r.Amount, ok = coerceDecimal(fields["amount"]); !ok {
		r.Issues = append(r.Issues, "amount")
	}
	if r.Timestamp, ok = coerceInt(fields["timestamp"]); !ok {
		r.Issues = append(r.Issues, "timestamp")
	}
	if len(r.Issues) > 0 {
		r.keepRaw(data)
	}
	return nil
}

func (r *Record) keepRaw(data []byte) {
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
}

// jsonKind returns the first significant byte of a raw JSON value, or 0 when absent.
func jsonKind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func isNumberStart(b byte) bool {
	return b == '-' || (b >= '0' && b <= '9')
}

func coerceString(raw json.RawMessage) (string, bool) {
	switch k := jsonKind(raw); {
	case k == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case isNumberStart(k), k == 't', k == 'f':
		// scalars keep their textual form
		return string(bytes.TrimSpace(raw)), false
	default:
		return "", false
	}
}

func coerceInt(raw json.RawMessage) (int64, bool) {
	k := jsonKind(raw)
	text := string(bytes.TrimSpace(raw))
	strict := true
	if k == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
		strict = false
	} else if !isNumberStart(k) {
		return 0, false
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, strict
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), false
}

func coerceDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	k := jsonKind(raw)
	switch {
	case isNumberStart(k):
		d, err := decimal.NewFromString(string(bytes.TrimSpace(raw)))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case k == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, false
		}
		return d, false
	default:
		return decimal.Zero, false
	}
}

func coerceDate(raw json.RawMessage) (Date, bool) {
	if jsonKind(raw) != '"' {
		return Date{}, false
	}
	var d Date
	if err := d.UnmarshalJSON(raw); err != nil {
		return Date{}, false
	}
	return d, !d.IsZero()
}
