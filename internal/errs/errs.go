// Package errs provides machine-readable error codes on top of samber/oops.
//
// Codes follow the "area.entity.reason" convention. The last segment is the
// reason and drives the classification helpers (IsNotFound, IsInvalidInput, ...)
// and HTTPStatus.
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeEngineReminderInvalid  Code = "engine.reminder.invalid"
	CodeEngineReminderNotFound Code = "engine.reminder.not_found"
	CodeEngineSampleInvalid    Code = "engine.sample.invalid"
	CodeEngineStopped          Code = "engine.queue.closed"

	CodeStoreEventInvalid          Code = "store.event.invalid"
	CodeStoreLocationInvalid       Code = "store.location.invalid"
	CodeStoreDatabaseFailure       Code = "store.database.failure"
	CodeStoreGeofenceStateNotFound Code = "store.geofence_state.not_found"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeDirectoryUpstreamFailure Code = "directory.upstream.failure"
	CodeDirectoryResponseInvalid Code = "directory.response.invalid"
	CodeDirectoryFileInvalid     Code = "directory.file.invalid"

	CodeRemindersUpstreamFailure Code = "reminders.upstream.failure"
	CodeRemindersNotFound        Code = "reminders.not_found"

	CodeNotifyPublishFailure Code = "notify.publish.failure"

	CodeLocationSourceFailure Code = "location.source.failure"
	CodeLocationTrackInvalid  Code = "location.track.invalid"
	CodeLocationNotMonitoring Code = "location.subscription.inactive"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"

	CodeHarnessScenarioInvalid Code = "harness.scenario.invalid"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the code attached to err, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

// FieldsOf returns the structured context attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// HTTPStatus maps an error to the status code the API server responds with.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case HasCode(err, CodeEngineStopped):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func reason(code Code) string {
	s := string(code)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

func flatten(fields []Attr) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
