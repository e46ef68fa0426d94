package syncerrors

import (
	stderrors "errors"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindNotFound, "not_found"},
		{KindConflict, "conflict"},
		{KindValidation, "validation"},
		{KindTransientStore, "transient_store"},
		{KindChannelDelivery, "channel_delivery"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindConflict, "taken")); got != KindConflict {
		t.Errorf("KindOf = %v, want KindConflict", got)
	}
	if got := KindOf(stderrors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want KindUnknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want KindUnknown", got)
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("row not found")
	err := Wrap(KindNotFound, cause, "get user")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should keep the cause in its chain")
	}
	if !IsNotFound(err) {
		t.Error("wrapped error should classify as not found")
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(KindNotFound, nil, "get") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(KindNotFound, nil, "get %s", "u-1") != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}

func TestWrapf_FormatsMessage(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrapf(KindTransientStore, cause, "get user %q", "u-1")

	want := `get user "u-1": boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsTransientStore(err) {
		t.Error("should classify as transient store")
	}
}

func TestClassificationSurvivesOuterWrapping(t *testing.T) {
	inner := New(KindValidation, "bad sortBy")
	outer := Wrap(KindUnknown, inner, "list users")

	// The outermost explicit Kind wins; here the outer wrap reclassified.
	if got := KindOf(outer); got != KindUnknown {
		t.Errorf("KindOf(outer) = %v, want KindUnknown", got)
	}

	// A plain fmt-style wrap keeps the inner classification reachable.
	plain := stderrors.Join(stderrors.New("context"), inner)
	if !IsValidation(plain) {
		t.Error("inner validation kind should survive plain wrapping")
	}
}
