package gpib

// Public mock Conn to test instrument drivers without hardware.

import (
	"sync"
	"testing"

	"github.com/juju/errors"
)

// MockR is one scripted exchange: [0] expected directive, [1] response.
// Response "" means a plain write is expected.
type MockR [2]string

type MockConn struct {
	t        testing.TB
	lk       sync.Mutex
	sent     []string
	replies  map[string]string
	script   []MockR
	pos      int
	failNext error
	closed   bool
	clears   int
}

func NewMockConn(t testing.TB) *MockConn {
	return &MockConn{t: t, replies: make(map[string]string)}
}

// ExpectMap registers query responses without ordering; writes are just
// recorded. Good for round-trip tests.
func (self *MockConn) ExpectMap(m map[string]string) {
	self.lk.Lock()
	defer self.lk.Unlock()
	for k, v := range m {
		self.replies[k] = v
	}
}

// Expect switches the mock into strict mode: every operation must match
// the script in order. Close() fails the test on leftovers.
func (self *MockConn) Expect(script []MockR) {
	self.lk.Lock()
	defer self.lk.Unlock()
	self.script = append(self.script, script...)
}

// FailNext makes the next operation return e, simulating a link fault.
func (self *MockConn) FailNext(e error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	self.failNext = e
}

// Sent returns a copy of every directive seen so far, writes and
// queries alike, in order.
func (self *MockConn) Sent() []string {
	self.lk.Lock()
	defer self.lk.Unlock()
	out := make([]string, len(self.sent))
	copy(out, self.sent)
	return out
}

func (self *MockConn) Closed() bool {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.closed
}

func (self *MockConn) Clears() int {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.clears
}

func (self *MockConn) begin(directive string) error {
	if self.closed {
		return errors.Errorf("mock: %q after Close", directive)
	}
	if e := self.failNext; e != nil {
		self.failNext = nil
		return e
	}
	self.sent = append(self.sent, directive)
	return nil
}

func (self *MockConn) Write(directive string) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.begin(directive); err != nil {
		return err
	}
	if self.script != nil {
		r, err := self.nextScript(directive)
		if err != nil {
			return err
		}
		if r[1] != "" {
			self.t.Errorf("mock: write %q but script expects query response=%q", directive, r[1])
		}
	}
	return nil
}

func (self *MockConn) Query(directive string) (string, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.begin(directive); err != nil {
		return "", err
	}
	if self.script != nil {
		r, err := self.nextScript(directive)
		if err != nil {
			return "", err
		}
		return r[1], nil
	}
	resp, ok := self.replies[directive]
	if !ok {
		self.t.Errorf("mock: unexpected query %q", directive)
		return "", errors.Errorf("mock: unexpected query %q", directive)
	}
	return resp, nil
}

func (self *MockConn) QueryNumeric(directive string) ([]float64, error) {
	raw, err := self.Query(directive)
	if err != nil {
		return nil, err
	}
	return ParseNumeric(raw)
}

func (self *MockConn) nextScript(directive string) (MockR, error) {
	if self.pos >= len(self.script) {
		self.t.Errorf("mock: %q past end of script", directive)
		return MockR{}, errors.Errorf("mock: %q past end of script", directive)
	}
	r := self.script[self.pos]
	self.pos++
	if r[0] != directive {
		self.t.Errorf("mock: directive=%q expected=%q pos=%d", directive, r[0], self.pos-1)
		return MockR{}, errors.Errorf("mock: directive=%q expected=%q", directive, r[0])
	}
	return r, nil
}

func (self *MockConn) Clear() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if self.closed {
		return errors.Errorf("mock: Clear after Close")
	}
	self.clears++
	return nil
}

func (self *MockConn) Close() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if self.script != nil && self.pos != len(self.script) {
		self.t.Errorf("mock: Close with %d unconsumed script entries", len(self.script)-self.pos)
	}
	self.closed = true
	return nil
}
