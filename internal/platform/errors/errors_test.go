package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"

	"chime/internal/platform/testkit"
)

func TestWrapPreservesCodeAndCause(t *testing.T) {
	cause := stderrs.New("connection reset")
	err := Wrapf(cause, ErrorCodeBus, "publish alarm.triggered")

	if CodeOf(err) != ErrorCodeBus {
		t.Fatalf("code = %v", CodeOf(err))
	}
	testkit.MustContain(t, err.Error(), "connection reset")
	if Root(err) != cause {
		t.Fatalf("root = %v", Root(err))
	}
	if !stderrs.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(fmt.Errorf("plain")) != ErrorCodeUnknown {
		t.Fatal("foreign error classified")
	}
	if CodeOf(nil) != ErrorCodeUnknown {
		t.Fatal("nil error classified")
	}
}

func TestWithField(t *testing.T) {
	err := Validationf("must be HH:MM or HH:MM:SS")
	tagged := WithField(err, "local_time")

	e, ok := As(tagged)
	if !ok || e.Field() != "local_time" {
		t.Fatalf("field = %+v", tagged)
	}
	// the original stays untouched
	orig, _ := As(err)
	if orig.Field() != "" {
		t.Fatal("WithField mutated the original")
	}

	plain := stderrs.New("plain")
	if WithField(plain, "x") != plain {
		t.Fatal("foreign error rewrapped")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		NotFoundf("gone"):       http.StatusNotFound,
		Stalef("lost cas"):      http.StatusConflict,
		DuplicateKeyf("dup"):    http.StatusConflict,
		Validationf("bad"):      http.StatusBadRequest,
		InvalidArgf("bad"):      http.StatusBadRequest,
		JSONErrf("bad json"):    http.StatusBadRequest,
		Unavailablef("down"):    http.StatusServiceUnavailable,
		DBf("broken"):           http.StatusInternalServerError,
		Terminalf("gave up"):    http.StatusInternalServerError,
		stderrs.New("whatever"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Errorf("%v -> %d, want %d", err, got, want)
		}
	}
}

func TestWireFrom(t *testing.T) {
	w := WireFrom(WithField(Validationf("required"), "email"))
	if w.Code != ErrorCodeValidation || w.Field != "email" || w.Message != "required" {
		t.Fatalf("wire = %+v", w)
	}

	w = WireFrom(stderrs.New("boom"))
	if w.Code != ErrorCodeUnknown {
		t.Fatalf("wire = %+v", w)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Unavailablef("transient")) {
		t.Fatal("unavailable not retryable")
	}
	for _, err := range []error{Terminalf("done"), Stalef("cas"), DuplicateKeyf("dup"), Conflictf("edit")} {
		if Retryable(err) {
			t.Fatalf("%v retryable", err)
		}
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows missed")
	}
	if IsNoRows(stderrs.New("no rows in my head")) {
		t.Fatal("string match accepted")
	}
}
