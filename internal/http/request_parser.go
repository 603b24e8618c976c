// Package http exposes the ledger services as a JSON API.
//
// This file implements request decoding. Bodies are size-limited, unknown
// fields are rejected, and every decoding problem surfaces as a
// core.ValidationError so handlers can map it like any other rejection.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

const dateLayout = "2006-01-02"

var ErrEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from r into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Invalid("body", fmt.Errorf("exceeds %d bytes", tooLarge.Limit))
		}
		return core.Invalid("body", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return core.Invalid("body", ErrEmptyBody)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Invalid("body", err)
	}
	if dec.More() {
		return core.Invalid("body", errors.New("trailing data after JSON object"))
	}
	return nil
}

// Amount accepts both JSON strings ("12.50", "12,50") and bare numbers.
// Strings go through core.ParseAmount; the original text is kept so
// parsing errors can be reported against the right field.
type Amount struct {
	raw string
	set bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	a.raw, a.set = s, true
	return nil
}

// parse returns the amount as a positive decimal.
func (a Amount) parse(field string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(a.raw)
	if err != nil {
		return decimal.Zero, core.Invalid(field, core.ErrInvalidAmount)
	}
	return d, nil
}

// parseNonNegative is used for goal targets, where zero is allowed.
func (a Amount) parseNonNegative(field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(a.raw), ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero, core.Invalid(field, core.ErrNegativeTarget)
	}
	return d.Round(core.MaxAmountScale), nil
}

func (a Amount) IsSet() bool { return a.set }

// parseDate accepts YYYY-MM-DD or RFC 3339 and returns a UTC time.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, core.Invalid(field, fmt.Errorf("expected YYYY-MM-DD, got %q", s))
	}
	return t.UTC(), nil
}

func parseKind(field, s string) (core.Kind, error) {
	k := core.Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", core.Invalid(field, core.ErrInvalidKind)
	}
	return k, nil
}

func parseStatus(field, s string) (core.GoalStatus, error) {
	st := core.GoalStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", core.Invalid(field, core.ErrInvalidStatus)
	}
	return st, nil
}

// ParseTransactionFilter reads kind, tag, limit and offset from the query string.
func ParseTransactionFilter(query url.Values) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	if v := strings.TrimSpace(query.Get("kind")); v != "" {
		k, err := parseKind("kind", v)
		if err != nil {
			return f, err
		}
		f.Kind = k
	}
	f.Tag = sanitizeInput(query.Get("tag"))

	var err error
	if f.Limit, err = queryInt(query, "limit", 0, 1000); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(query, "offset", 0, -1); err != nil {
		return f, err
	}
	return f, nil
}

// queryInt parses a non-negative integer parameter. max < 0 means unbounded.
func queryInt(query url.Values, key string, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || (max >= 0 && n > max) {
		return 0, core.Invalid(key, fmt.Errorf("invalid value %q", v))
	}
	return n, nil
}
