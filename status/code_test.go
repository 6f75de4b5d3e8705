package status

import "testing"

func TestCodeError(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{OK, "ok"},
		{ErrHeaderTooLarge, "request header fields too large"},
		{ErrSocketConnReset, "connection reset by peer"},
	}
	for _, tt := range tests {
		if got := tt.code.Error(); got != tt.want {
			t.Errorf("Code(%d).Error() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCodeCategory(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{OK, CategoryNone},
		{ErrPoolExhausted, CategoryResource},
		{ErrMalformedHeader, CategoryProtocol},
		{ErrSocketPipe, CategorySocket},
		{ErrPerIPLimitReached, CategoryPolicy},
		{ErrFDOutOfRange, CategoryConfiguration},
		{ErrBuffTooSmall, CategoryInfoQuery},
	}
	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.want {
			t.Errorf("Code(%d).Category() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRegisterMessage(t *testing.T) {
	const custom Code = 9001
	if got := custom.Error(); got != "status: unknown code" {
		t.Fatalf("unexpected default message: %q", got)
	}
	RegisterMessage(custom, "custom failure")
	if got := custom.Error(); got != "custom failure" {
		t.Errorf("Error() = %q, want %q", got, "custom failure")
	}
}

func TestOk(t *testing.T) {
	if !OK.Ok() {
		t.Error("OK.Ok() = false, want true")
	}
	if ErrHeaderTooLarge.Ok() {
		t.Error("ErrHeaderTooLarge.Ok() = true, want false")
	}
}
