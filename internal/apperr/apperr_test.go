package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := New(KindOfflineCacheMiss, "resolve source", "git@github.com:org/x.git", "not cached")
	wrapped := fmt.Errorf("rendering: %w", base)

	if got := KindOf(wrapped); got != KindOfflineCacheMiss {
		t.Errorf("KindOf = %v, want %v", got, KindOfflineCacheMiss)
	}
	if !Is(wrapped, KindSourceResolution) {
		t.Error("offline cache miss should belong to the source-resolution family")
	}
	if Is(wrapped, KindTemplate) {
		t.Error("offline cache miss should not be a template error")
	}
}

func TestIs_InnerKind(t *testing.T) {
	inner := New(KindUndefinedVariable, "render template", "name", "undefined")
	outer := Wrap(KindMaterialization, "write", "a.txt", inner)

	if !Is(outer, KindUndefinedVariable) {
		t.Error("expected inner kind to be found")
	}
	if KindOf(outer) != KindMaterialization {
		t.Errorf("KindOf = %v, want outer kind", KindOf(outer))
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("plain"), ExitGeneric},
		{New(KindOfflineCacheMiss, "", "", "x"), ExitOfflineCacheMiss},
		{New(KindNetwork, "", "", "x"), ExitSource},
		{New(KindCatalogCycle, "", "", "x"), ExitCatalog},
		{New(KindRequiredVariableMissing, "", "", "x"), ExitAnswers},
		{New(KindTemplateSyntax, "", "", "x"), ExitTemplate},
		{New(KindMaterialization, "", "", "x"), ExitMaterialization},
		{New(KindCacheLock, "", "", "x"), ExitCacheLock},
		{New(KindCancelled, "", "", "x"), ExitCancelled},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := Errorf(KindAnswerValidation, "validate answer", "port", "expected int, got %q", "abc")
	want := `validate answer "port": expected int, got "abc"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(KindNetwork, "fetch", "x", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
