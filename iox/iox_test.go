package iox

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

type spyBody struct {
	io.Reader
	spyCloser
}

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDrainClose(t *testing.T) {
	r := strings.NewReader("leftover response body")
	body := &spyBody{Reader: r}
	DrainClose(body)
	if !body.closed {
		t.Fatal("Close was not called")
	}
	if r.Len() != 0 {
		t.Errorf("expected body drained, %d bytes left", r.Len())
	}
}

func TestDrainClose_Limit(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", drainLimit+10))
	body := &spyBody{Reader: r}
	DrainClose(body)
	if r.Len() != 10 {
		t.Errorf("expected 10 bytes left past the drain limit, got %d", r.Len())
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}
