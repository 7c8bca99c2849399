package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/pkg/httpmiddleware"
)

const maxBodySize = 1 << 20

var errBadJSON = fault.Invalid("malformed JSON body")

// decodeBody reads the request body and walks its top-level object, calling
// field for every key.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fault.Invalid("request body too large")
		}
		return errors.Wrap(err, "read body")
	}

	d := jx.DecodeBytes(buf)
	if d.Next() != jx.Object {
		return errBadJSON
	}
	if err := d.Obj(field); err != nil {
		var f *fault.Error
		if errors.As(err, &f) {
			return f
		}
		return errBadJSON
	}
	return nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder, name string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		return decimal.Decimal{}, fault.Invalidf("%s must be a number", name)
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fault.Invalidf("%s must be a number", name)
	}
	return v, nil
}

// decodeRaw returns a scalar field as text, so that "10", 10 and "abc" are
// all accepted as-is.
func decodeRaw(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}

// decodeOptString decodes a string that may be null.
func decodeOptString(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeOptTime decodes an RFC 3339 timestamp that may be null.
func decodeOptTime(d *jx.Decoder, name string) (*time.Time, error) {
	s, err := decodeOptString(d)
	if err != nil || s == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fault.Invalidf("%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOptTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	encodeTime(e, *t)
}

func encodeOptString(e *jx.Encoder, s *string) {
	if s == nil {
		e.Null()
		return
	}
	e.Str(*s)
}

// writeJSON writes a JSON response built by fn.
func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func statusOf(k fault.Kind) int {
	switch k {
	case fault.KindInvalid:
		return http.StatusBadRequest
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into a {"code","message"} response, plus the
// request_id when one was assigned. Internal errors are logged and keep the
// underlying text.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	code := statusOf(kind)

	msg := fault.Message(err)
	if kind == fault.KindInternal {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		msg = "internal server error: " + err.Error()
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
				e.Field("request_id", func(e *jx.Encoder) { e.Str(id) })
			}
		})
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fault.Invalidf("%s must be an integer", name)
	}
	return v, nil
}
