package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", New(Validation, "image too large"), Validation},
		{"service", Wrap(Service, io.ErrClosedPipe, "publish failed"), Service},
		{"wrapped deeper", fmt.Errorf("submit: %w", New(Validation, "no image")), Validation},
		{"untyped defaults to internal", errors.New("boom"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := Wrap(Internal, io.EOF, "read file")
	if !errors.Is(err, io.EOF) {
		t.Error("expected wrapped error to match io.EOF")
	}
	if err.Error() != "read file: EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(New(Validation, "bad input")) {
		t.Error("expected validation error")
	}
	if IsValidation(New(Service, "broker down")) {
		t.Error("service error must not be validation")
	}
}
