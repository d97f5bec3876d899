package logger

import "testing"

func TestStringFieldsSkipsEmpty(t *testing.T) {
	fields := StringFields(
		StringField{Key: "a", Value: "1"},
		StringField{Key: "", Value: "2"},
		StringField{Key: "b", Value: "  "},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "a" {
		t.Fatalf("unexpected key: %s", fields[0].Key)
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	if got := WithFields(nil); got == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := TruncateForLog("hello world", 5); got != "hello..." {
		t.Fatalf("unexpected truncation: %q", got)
	}

	if got := TruncateForLog("short", 10); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}

	if got := TruncateForLog("anything", 0); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
