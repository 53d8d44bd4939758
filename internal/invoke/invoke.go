// Package invoke executes operations: it resolves the path template, routes
// parameters to their request locations, dispatches through a transport and
// classifies the outcome.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/pathparam"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/moamenhredeen/oascall/internal/transport"
	"github.com/sirupsen/logrus"
)

// Result is a successful invocation
type Result struct {
	RequestID  string        `json:"request_id" yaml:"request_id"`
	Operation  string        `json:"operation" yaml:"operation"`
	Method     string        `json:"method" yaml:"method"`
	Path       string        `json:"path" yaml:"path"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Header     http.Header   `json:"-" yaml:"-"`
	Data       any           `json:"data" yaml:"data"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Invoker runs operations against one transport. It holds no per-call state
// and is safe for concurrent use.
type Invoker struct {
	transport transport.Transport
	log       *logrus.Logger
}

// Option configures an Invoker
type Option func(*Invoker)

// WithLogger sets the logger used for dispatch tracing
func WithLogger(log *logrus.Logger) Option {
	return func(iv *Invoker) {
		iv.log = log
	}
}

// New creates an invoker dispatching through t
func New(t transport.Transport, opts ...Option) *Invoker {
	iv := &Invoker{
		transport: t,
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(iv)
	}
	return iv
}

// Invoke executes op with the bound input. A nil input invokes op without
// any values. Every failure is an *apierr.Error.
func (iv *Invoker) Invoke(ctx context.Context, op models.Operation, in *schema.Input) (*Result, error) {
	requestID := uuid.NewString()
	log := iv.log.WithFields(logrus.Fields{
		"operation":  op.Name,
		"method":     op.Method,
		"request_id": requestID,
	})

	req, err := buildRequest(op, in)
	if err != nil {
		log.WithError(err).Debug("request not dispatched")
		return nil, err
	}

	log = log.WithField("path", req.Path)
	log.Debug("dispatching request")

	start := time.Now()
	resp, err := iv.transport.Do(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		log.WithError(err).Debug("transport failed")
		return nil, apierr.Transport(op.Name, err)
	}

	data := decode(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failure := apierr.FromStatus(op.Name, resp.StatusCode, resp.Body, data)
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "kind": failure.Kind}).Debug("request failed")
		return nil, failure
	}

	log.WithFields(logrus.Fields{"status": resp.StatusCode, "duration": elapsed}).Debug("request completed")

	return &Result{
		RequestID:  requestID,
		Operation:  op.Name,
		Method:     op.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Data:       data,
		Duration:   elapsed,
	}, nil
}

// buildRequest resolves the path and partitions parameters. It fails before
// any network call when a path parameter is missing or a placeholder remains.
func buildRequest(op models.Operation, in *schema.Input) (*transport.Request, error) {
	params := func(loc models.Location) map[string]any {
		if in == nil {
			return map[string]any{}
		}
		return in.Params(loc)
	}

	pathValues := map[string]any{}
	for name, v := range params(models.LocationPath) {
		pathValues[name] = escapePathValue(pathparam.FormatValue(v))
	}

	resolved, missing := pathparam.Substitute(op.Path, pathValues)
	if len(missing) > 0 {
		return nil, apierr.MissingPathParameters(op.Name, missing)
	}

	if ok, remaining := pathparam.Validate(resolved); !ok {
		return nil, apierr.UnresolvedPathTemplate(op.Name, resolved, remaining)
	}

	req := &transport.Request{
		Method: op.Method,
		Path:   resolved,
		Query:  url.Values{},
		Header: http.Header{},
	}

	for name, v := range params(models.LocationQuery) {
		for _, s := range formatValues(v) {
			req.Query.Add(name, s)
		}
	}

	for name, v := range params(models.LocationHeader) {
		req.Header.Set(name, strings.Join(formatValues(v), ","))
	}

	if cookies := cookieHeader(params(models.LocationCookie)); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	if in != nil {
		// Caller supplied headers win on collision
		for k, v := range in.ExtraHeaders() {
			req.Header.Set(k, v)
		}

		if body, ok := in.Body(); ok {
			req.Body = body
		}
	}

	return req, nil
}

// escapePathValue escapes a value for a single path segment, including ':'
// so a substituted value never reads as a placeholder.
func escapePathValue(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), ":", "%3A")
}

// formatValues expands arrays into one string per element
func formatValues(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{pathparam.FormatValue(v)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, pathparam.FormatValue(item))
	}
	return out
}

func cookieHeader(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		c := &http.Cookie{Name: name, Value: strings.Join(formatValues(values[name]), ",")}
		pairs = append(pairs, c.String())
	}
	return strings.Join(pairs, "; ")
}

// decode returns the JSON payload, the raw text when the body is not JSON, or
// nil for an empty body. Numbers are kept as json.Number.
func decode(body []byte) any {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil || dec.More() {
		return string(body)
	}
	return data
}
