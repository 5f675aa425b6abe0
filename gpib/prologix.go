package gpib

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/pkg/term"

	"github.com/mbi-div-b/keithley6514/log2"
)

const (
	DefaultBaud = 115200
	dialTimeout = 5 * time.Second
	// readTimeout is handed to the adapter as ++read_tmo_ms; readSlack
	// covers transit on top of it when the link can enforce deadlines.
	readTimeout = 3 * time.Second
	readSlack   = 2 * time.Second
)

// deadliner is the subset of net.Conn used to bound reads. The serial
// port has no equivalent; there the adapter's own timeout is the only
// guard.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// prologix drives a Prologix GPIB-USB or GPIB-ETHERNET controller in
// CONTROLLER mode. Controller commands start with "++" and are consumed
// by the adapter itself, anything else goes to the addressed instrument.
type prologix struct {
	lk   sync.Mutex
	log  *log2.Log
	rw   io.ReadWriteCloser
	dl   deadliner
	br   *bufio.Reader
	addr string
}

// OpenSerial connects through a Prologix GPIB-USB controller on a
// serial device, e.g. /dev/ttyUSB0.
func OpenSerial(log *log2.Log, device string, baud int, gpibAddr string) (Conn, error) {
	const tag = "gpib.OpenSerial"
	if baud == 0 {
		baud = DefaultBaud
	}
	tty, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, errors.Annotatef(err, "%s device=%s", tag, device)
	}
	conn, err := newPrologix(log, tty, gpibAddr)
	if err != nil {
		_ = tty.Close()
		return nil, errors.Annotate(err, tag)
	}
	return conn, nil
}

// OpenTCP connects through a Prologix GPIB-ETHERNET gateway, hostport
// like "10.0.0.5:1234".
func OpenTCP(log *log2.Log, hostport string, gpibAddr string) (Conn, error) {
	const tag = "gpib.OpenTCP"
	netConn, err := net.DialTimeout("tcp", hostport, dialTimeout)
	if err != nil {
		return nil, errors.Annotatef(err, "%s addr=%s", tag, hostport)
	}
	conn, err := newPrologix(log, netConn, gpibAddr)
	if err != nil {
		_ = netConn.Close()
		return nil, errors.Annotate(err, tag)
	}
	return conn, nil
}

func newPrologix(log *log2.Log, rw io.ReadWriteCloser, gpibAddr string) (*prologix, error) {
	if strings.TrimSpace(gpibAddr) == "" {
		return nil, errors.Errorf("gpib: empty instrument address")
	}
	self := &prologix{
		log:  log,
		rw:   rw,
		br:   bufio.NewReader(rw),
		addr: gpibAddr,
	}
	if dl, ok := rw.(deadliner); ok {
		self.dl = dl
	}
	// adapter config: be controller, address the instrument, assert EOI,
	// no auto-read after write (we issue ++read explicitly)
	setup := []string{
		"++mode 1",
		"++addr " + gpibAddr,
		"++auto 0",
		"++eoi 1",
		"++eos 3",
		"++read_tmo_ms " + strconv.Itoa(int(readTimeout/time.Millisecond)),
	}
	for _, s := range setup {
		if err := self.sendLine(s); err != nil {
			return nil, errors.Annotatef(err, "prologix setup cmd=%s", s)
		}
	}
	return self, nil
}

func (self *prologix) sendLine(s string) error {
	self.log.Debugf("gpib > %s", s)
	_, err := self.rw.Write([]byte(s + "\n"))
	return errors.Annotatef(err, "gpib write line=%s", s)
}

func (self *prologix) readLine() (string, error) {
	if self.dl != nil {
		// silent instrument: the gateway never forwards the adapter's
		// timeout, so bound the socket read ourselves
		if err := self.dl.SetReadDeadline(time.Now().Add(readTimeout + readSlack)); err != nil {
			return "", errors.Annotate(err, "gpib set read deadline")
		}
	}
	line, err := self.br.ReadString('\n')
	if err != nil {
		return "", errors.Annotatef(err, "gpib read partial=%q", line)
	}
	line = strings.TrimRight(line, "\r\n")
	self.log.Debugf("gpib < %s", line)
	return line, nil
}

func (self *prologix) Write(directive string) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.sendLine(directive)
}

func (self *prologix) Query(directive string) (string, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.sendLine(directive); err != nil {
		return "", err
	}
	if err := self.sendLine("++read eoi"); err != nil {
		return "", err
	}
	return self.readLine()
}

func (self *prologix) QueryNumeric(directive string) ([]float64, error) {
	raw, err := self.Query(directive)
	if err != nil {
		return nil, err
	}
	return ParseNumeric(raw)
}

// Clear issues Selected Device Clear, the GPIB-level reset of the
// instrument's IO buffers.
func (self *prologix) Clear() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.sendLine("++clr")
}

func (self *prologix) Close() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.rw.Close()
}
