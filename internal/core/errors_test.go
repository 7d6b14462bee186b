// SPDX-License-Identifier: MPL-2.0

package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	t.Parallel()
	err := New(KindCommandFailed, "command %s failed", "pytest")
	if !strings.Contains(err.Error(), "command-failed") || !strings.Contains(err.Error(), "pytest") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("underlying")
	err := Wrap(KindInterpreterMissing, cause, "no python")
	if !errors.Is(err, cause) {
		t.Errorf("wrapped cause must be reachable with errors.Is")
	}
	if !strings.Contains(err.Error(), "underlying") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	err := New(KindRequiresCycle, "loop")
	if KindOf(err) != KindRequiresCycle {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	wrapped := fmt.Errorf("context: %w", err)
	if KindOf(wrapped) != KindRequiresCycle {
		t.Errorf("KindOf must see through wrapping, got %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Errorf("plain errors carry no kind")
	}
}

func TestIsKind(t *testing.T) {
	t.Parallel()
	err := New(KindExternalUse, "outside")
	if !IsKind(err, KindExternalUse) || IsKind(err, KindCommandFailed) {
		t.Errorf("IsKind misclassified %v", err)
	}
	if IsKind(nil, KindExternalUse) {
		t.Errorf("nil carries no kind")
	}
}
