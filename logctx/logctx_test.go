package logctx

import "testing"

func TestNilSinkIsSafe(t *testing.T) {
	var s *Sink
	s.Warnf("op", "message %d", 1)
	s.Infof("op", "message %d", 1)
	s.Errorf("op", "message %d", 1)
	if s.Level() != Quiet {
		t.Fatalf("nil sink should report Quiet, got %v", s.Level())
	}
}

func TestDiscardDoesNotPanic(t *testing.T) {
	s := Discard()
	s.Warnf("op", "anything")
}

func TestLevels(t *testing.T) {
	for _, lvl := range []Level{Quiet, Normal, Verbose} {
		s := New(lvl)
		if s.Level() != lvl {
			t.Fatalf("expected level %v, got %v", lvl, s.Level())
		}
	}
}
