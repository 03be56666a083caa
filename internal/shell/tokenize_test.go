package shell

import (
	"reflect"
	"testing"
)

func TestTokenizeSimple(t *testing.T) {
	got, err := tokenize("ls -la /tmp")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []string{"ls", "-la", "/tmp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeQuotedArgument(t *testing.T) {
	got, err := tokenize(`echo "hello world"`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []string{"echo", "hello world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeEmptyLine(t *testing.T) {
	got, err := tokenize("")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("tokenize(\"\") = %v, want empty", got)
	}
}

func TestTokenizeRejectsMultipleStatements(t *testing.T) {
	_, err := tokenize("echo one; echo two")
	if err == nil {
		t.Fatal("expected error for multiple statements")
	}
}
