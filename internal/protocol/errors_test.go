package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNotFound,
		ErrRateLimit,
		ErrConflict,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
	if e := NewError(ErrNotFound, "account acc-1"); e.Type != TypeError || e.ProtocolVersion != Version {
		t.Fatalf("error msg=%+v", e)
	}
}

func TestNewError_UnknownCode(t *testing.T) {
	for _, code := range []string{"", "E_NOT_DEFINED"} {
		e := NewError(code, "boom")
		if e.Code != ErrInternal || e.Message != "boom" {
			t.Fatalf("code %q: msg=%+v", code, e)
		}
	}
	if e := NewError(ErrConflict, "x"); e.Code != ErrConflict {
		t.Fatalf("msg=%+v", e)
	}
}
