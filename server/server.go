// Package server exposes the electrometer's properties and commands to
// remote control processes as a line-based TCP protocol: one request
// line in, one reply line out. The device core serializes concurrent
// clients on its own mutex.
package server

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/mbi-div-b/keithley6514/helpers"
	"github.com/mbi-div-b/keithley6514/keithley"
	"github.com/mbi-div-b/keithley6514/log2"
	"github.com/mbi-div-b/keithley6514/tele"
)

const usage = "commands: get current|range|speed|trigger|zerocheck|state|buffer;" +
	" set range|speed|trigger|zerocheck VALUE; reset; buffer N; readbuf;" +
	" readerrors; raw? DIRECTIVE; raw! DIRECTIVE; quit"

type Server struct {
	alive *alive.Alive
	log   *log2.Log
	dev   *keithley.Device
	tele  *tele.Tele
	ll    net.Listener
	conns struct {
		sync.Mutex
		m map[net.Conn]struct{}
	}
}

func New(log *log2.Log, dev *keithley.Device, tl *tele.Tele) *Server {
	s := &Server{
		alive: alive.NewAlive(),
		log:   log,
		dev:   dev,
		tele:  tl,
	}
	s.conns.m = make(map[net.Conn]struct{})
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	ll, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "server listen addr=%s", addr)
	}
	s.ll = ll
	if !s.alive.Add(1) {
		_ = ll.Close()
		return errors.Errorf("server Listen after Stop")
	}
	s.log.Infof("server listening addr=%s", ll.Addr())
	go s.acceptLoop(ll)
	return nil
}

// Addr is the bound address, useful with listen=":0" in tests.
func (s *Server) Addr() string {
	if s.ll == nil {
		return ""
	}
	return s.ll.Addr().String()
}

func (s *Server) Stop() {
	s.alive.Stop()
	if s.ll != nil {
		_ = s.ll.Close()
	}
	helpers.WithLock(&s.conns, func() {
		for c := range s.conns.m {
			_ = c.Close()
		}
	})
	s.alive.Wait()
}

func (s *Server) acceptLoop(ll net.Listener) {
	defer s.alive.Done()
	for {
		netConn, err := ll.Accept()
		if !s.alive.IsRunning() {
			return
		}
		if err != nil {
			s.log.Errorf("accept: %v", err)
			s.alive.Stop()
			return
		}
		if !s.alive.Add(1) {
			_ = netConn.Close()
			return
		}
		helpers.WithLock(&s.conns, func() { s.conns.m[netConn] = struct{}{} })
		go s.processConn(netConn)
	}
}

func (s *Server) processConn(conn net.Conn) {
	defer s.alive.Done()
	defer func() {
		helpers.WithLock(&s.conns, func() { delete(s.conns.m, conn) })
		_ = conn.Close()
	}()
	s.log.Debugf("client connect addr=%s", conn.RemoteAddr())

	scan := bufio.NewScanner(conn)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			return
		}
		reply := s.Exec(line)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			s.log.Debugf("client write addr=%s err=%v", conn.RemoteAddr(), err)
			return
		}
	}
	s.log.Debugf("client gone addr=%s err=%v", conn.RemoteAddr(), scan.Err())
}

// Exec runs one request line and returns the reply line. Exported so
// tests and alternative frontends can drive the surface directly.
func (s *Server) Exec(line string) string {
	reply, err := s.exec(line)
	if err != nil {
		s.log.Errorf("exec line=%q err=%s", line, errors.ErrorStack(err))
		return "error: " + err.Error()
	}
	return reply
}

func (s *Server) exec(line string) (string, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return "", errors.Errorf("empty request")
	}
	switch words[0] {
	case "help":
		return usage, nil

	case "get":
		if len(words) != 2 {
			return "", errors.Errorf("syntax: get PROPERTY")
		}
		return s.get(words[1])

	case "set":
		if len(words) != 3 {
			return "", errors.Errorf("syntax: set PROPERTY VALUE")
		}
		return s.set(words[1], words[2])

	case "reset":
		if err := s.dev.Reset(); err != nil {
			return "", err
		}
		return "ok", nil

	case "buffer":
		if len(words) != 2 {
			return "", errors.Errorf("syntax: buffer CAPACITY")
		}
		n, err := strconv.Atoi(words[1])
		if err != nil {
			return "", errors.Annotatef(err, "buffer capacity=%s", words[1])
		}
		if err := s.dev.ConfigureBuffer(n); err != nil {
			return "", err
		}
		return "ok", nil

	case "readbuf":
		vals, err := s.dev.ReadBuffer()
		if err != nil {
			return "", err
		}
		ss := make([]string, len(vals))
		for i, v := range vals {
			ss[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(ss, ","), nil

	case "readerrors":
		out, err := s.dev.ReadErrors()
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(out, "\n", "; "), nil

	case "raw?":
		d := strings.TrimSpace(strings.TrimPrefix(line, "raw?"))
		if d == "" {
			return "", errors.Errorf("syntax: raw? DIRECTIVE")
		}
		return s.dev.QueryRaw(d)

	case "raw!":
		d := strings.TrimSpace(strings.TrimPrefix(line, "raw!"))
		if d == "" {
			return "", errors.Errorf("syntax: raw! DIRECTIVE")
		}
		if err := s.dev.WriteRaw(d); err != nil {
			return "", err
		}
		return "ok", nil
	}
	return "", errors.Errorf("unknown command=%s, try help", words[0])
}

func (s *Server) get(prop string) (string, error) {
	switch prop {
	case "current":
		v, err := s.dev.ReadCurrent()
		if err != nil {
			return "", err
		}
		s.tele.Measurement(v)
		return fmt.Sprintf("current=%e", v), nil
	case "range":
		return "range=" + s.dev.Range().String(), nil
	case "speed":
		return fmt.Sprintf("speed=%.2f", s.dev.Speed()), nil
	case "trigger":
		return "trigger=" + s.dev.Trigger().String(), nil
	case "zerocheck":
		return "zerocheck=" + onOff(s.dev.ZeroCheck()), nil
	case "state":
		return "state=" + s.dev.State().String(), nil
	case "buffer":
		return "buffer=" + s.dev.BufferStatus().String(), nil
	}
	return "", errors.Errorf("unknown property=%s", prop)
}

func (s *Server) set(prop, value string) (string, error) {
	switch prop {
	case "range":
		r, err := keithley.RangeFromString(value)
		if err != nil {
			return "", err
		}
		if err := s.dev.SetRange(r); err != nil {
			return "", err
		}
	case "speed":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", errors.Annotatef(err, "speed=%s", value)
		}
		if err := s.dev.SetSpeed(v); err != nil {
			return "", err
		}
	case "trigger":
		m, err := keithley.TriggerModeFromString(value)
		if err != nil {
			return "", err
		}
		if err := s.dev.SetTrigger(m); err != nil {
			return "", err
		}
	case "zerocheck":
		on, err := parseOnOff(value)
		if err != nil {
			return "", err
		}
		if err := s.dev.SetZeroCheck(on); err != nil {
			return "", err
		}
	case "current", "state", "buffer":
		return "", errors.Errorf("property=%s is read-only", prop)
	default:
		return "", errors.Errorf("unknown property=%s", prop)
	}
	return "ok", nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, errors.Errorf("want on or off, got %s", s)
}
