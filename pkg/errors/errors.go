// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreSessionGetNotFound Code = "store.session.get.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreConflict           Code = "store.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeWalletConnectURIInvalid          Code = "walletconnect.uri.invalid"
	CodeWalletConnectSessionNotFound     Code = "walletconnect.session.not_found"
	CodeWalletConnectRequestInvalid      Code = "walletconnect.request.invalid_input"
	CodeWalletConnectRequestBusy         Code = "walletconnect.request.busy"
	CodeWalletConnectAccountInvalid      Code = "walletconnect.account.address.invalid"
	CodeWalletConnectAccountsMissing     Code = "walletconnect.account.list.invalid"
	CodeWalletConnectCommandFailure      Code = "walletconnect.command.failure"
	CodeWalletConnectTransportFailure    Code = "walletconnect.transport.failure"
	CodeWalletConnectPayloadInvalid      Code = "walletconnect.payload.invalid"
	CodeWalletConnectCallbackNotFound    Code = "walletconnect.callback.integrity.not_found"
	CodeWalletConnectAdapterUnsupported  Code = "walletconnect.adapter.unsupported"
	CodeWalletConnectSessionStateFailure Code = "walletconnect.session_state.failure"
	CodeWalletConnectClientClosed        Code = "walletconnect.client.closed"
	CodeWalletConnectDecryptFailure      Code = "walletconnect.crypto.decrypt.failure"
	CodeWalletConnectHandshakeTimeout    Code = "walletconnect.handshake.timeout"
	CodeWalletConnectLaneFailure         Code = "walletconnect.lane.failure"

	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretNotFound       Code = "secret.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid   Code = "server.request.invalid"
	CodeServerRateLimited      Code = "server.request.rate_limited"
	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerEntityNotFound   Code = "server.entity.not_found"
	CodeServerConfigInvalid    Code = "server.config.invalid"
	CodeServerStartFailure     Code = "server.start.failure"
	CodeServerShutdownFailure  Code = "server.shutdown.failure"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLIResponseInvalid   Code = "cli.response.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldTopic(value string) Attr {
	return Field("topic", value)
}

func FieldRequestID(value int64) Attr {
	return Field("request_id", value)
}

func FieldAddress(value string) Attr {
	return Field("address", value)
}

func FieldVersion(value int) Attr {
	return Field("version", value)
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

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

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

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

// IsBusy reports contention errors, such as a request arriving while another
// one for the same topic is still displayed.
func IsBusy(err error) bool {
	return reason(CodeOf(err)) == "busy"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsTransportFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "transport") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err), IsBusy(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		return http.StatusUnauthorized
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsTransportFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
