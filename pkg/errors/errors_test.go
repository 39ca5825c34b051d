package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !stdErrors.Is(err, internal) {
		t.Fatal("expected errors.Is to reach the internal error")
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestFromResponseKeepsServerPayload(t *testing.T) {
	err := FromResponse(http.StatusForbidden, []byte(`{"detail":"You do not have permission."}`), "Failed to fetch notifications")

	if err.Code != ErrForbidden.Code {
		t.Fatalf("expected %s, got %s", ErrForbidden.Code, err.Code)
	}
	if err.Message != "You do not have permission." {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	payload, ok := err.Payload.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded payload map, got %T", err.Payload)
	}
	if payload["detail"] != "You do not have permission." {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestFromResponseNestedEnvelope(t *testing.T) {
	err := FromResponse(http.StatusBadRequest, []byte(`{"success":false,"error":{"code":"BAD_REQUEST","message":"content is required"}}`), "Failed to send message")
	if err.Message != "content is required" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}

func TestFromResponseFallsBack(t *testing.T) {
	err := FromResponse(http.StatusInternalServerError, nil, "Failed to fetch unread count")
	if err.Message != "Failed to fetch unread count" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.Payload != nil {
		t.Fatalf("expected nil payload, got %v", err.Payload)
	}

	plain := FromResponse(http.StatusBadGateway, []byte("<html>bad gateway</html>"), "Failed")
	if plain.Code != ErrUnavailable.Code {
		t.Fatalf("expected %s, got %s", ErrUnavailable.Code, plain.Code)
	}
	if plain.Payload != "<html>bad gateway</html>" {
		t.Fatalf("expected raw body payload, got %v", plain.Payload)
	}
	if plain.Message != "Failed" {
		t.Fatalf("unexpected message: %s", plain.Message)
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
