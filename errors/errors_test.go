package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestConfigMissingListsEveryName(t *testing.T) {
	err := ConfigMissing([]string{"NATS_URL", "SQL_DSN", "HTTP_ADDR"})

	msg := err.Error()
	for _, name := range []string{"NATS_URL", "SQL_DSN", "HTTP_ADDR"} {
		if !strings.Contains(msg, name) {
			t.Errorf("message missing %s: %s", name, msg)
		}
	}
	// names are sorted for stable output
	if strings.Index(msg, "HTTP_ADDR") > strings.Index(msg, "NATS_URL") {
		t.Errorf("names not sorted: %s", msg)
	}
}

func TestErrorFormat(t *testing.T) {
	err := LinkFailed("wasi:keyvalue", stderrors.New("boom"))

	got := err.Error()
	want := "[link] link in wasi:keyvalue: add to linker (caused by: boom)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsMatchesPhaseAndKind(t *testing.T) {
	err := RouteMiss("/missing")

	if !stderrors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindRouteMiss}) {
		t.Error("Is should match phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindTopicMiss}) {
		t.Error("Is should not match different kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Handler(cause)

	if !stderrors.Is(err, cause) {
		t.Error("Unwrap chain should reach cause")
	}
}

func TestErrorCodeStrings(t *testing.T) {
	cases := map[ErrorCode]string{
		CodeConnectionTimeout: "connection-timeout",
		CodeConnectionRefused: "connection-refused",
		CodeURIInvalid:        "http-request-uri-invalid",
		CodeInternal:          "internal-error",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTransportInternalMessage(t *testing.T) {
	err := TransportInternal("no body", nil)
	if got := err.Error(); got != "[transport] internal-error(no body)" {
		t.Errorf("Error() = %q", got)
	}

	timeout := Transport(CodeConnectionTimeout, nil)
	if !stderrors.Is(timeout, &TransportError{Code: CodeConnectionTimeout}) {
		t.Error("Is should match on code")
	}
}
