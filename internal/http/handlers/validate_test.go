package handlers

import (
	"strings"
	"testing"

	"github.com/emonty/burrow/internal/queue"
)

func TestValidateSegmentAcceptsOrdinaryName(t *testing.T) {
	if err := validateSegment("my-account_1"); err != nil {
		t.Fatalf("unexpected error for an ordinary name: %v", err)
	}
}

func TestValidateSegmentRejectsEmpty(t *testing.T) {
	err := validateSegment("")
	if err == nil {
		t.Fatal("expected an error for an empty path segment")
	}
	if queue.KindOf(err) != queue.InvalidArguments {
		t.Fatalf("got kind %v, want InvalidArguments", queue.KindOf(err))
	}
}

func TestValidateSegmentRejectsPathHostileCharacters(t *testing.T) {
	for _, name := range []string{"a/b", "a?b", "a#b"} {
		if err := validateSegment(name); err == nil {
			t.Fatalf("expected an error for path-hostile name %q", name)
		}
	}
}

func TestValidateSegmentRejectsOverlong(t *testing.T) {
	if err := validateSegment(strings.Repeat("a", 256)); err == nil {
		t.Fatal("expected an error for a name over 255 characters")
	}
}

func TestValidateSegmentsReturnsFirstFailure(t *testing.T) {
	err := validateSegments("ok-account", "", "ok-id")
	if err == nil {
		t.Fatal("expected an error when the second segment is invalid")
	}
}

func TestValidateSegmentsAllValid(t *testing.T) {
	if err := validateSegments("acc", "q1", "msg-1"); err != nil {
		t.Fatalf("unexpected error for three valid segments: %v", err)
	}
}
