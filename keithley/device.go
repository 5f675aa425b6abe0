// Package keithley drives a Keithley 6514 electrometer through a gpib
// link. The Device keeps a cached mirror of instrument configuration;
// the cache is only ever updated after the translated directive was
// accepted by the link, so it always holds the last known good state.
package keithley

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/juju/errors"

	"github.com/mbi-div-b/keithley6514/gpib"
	"github.com/mbi-div-b/keithley6514/log2"
)

const expectModel = "MODEL 6514"

const (
	NplcMin      = 0.01
	NplcMax      = 10.0
	baselineNplc = 1.0

	errorQueueMax = 16
)

// Directives, SCPI for the 6514. Fixed-argument ones are sent verbatim.
const (
	cmdIdentify  = "*IDN?"
	cmdReset     = "*RST"
	cmdClearStat = "*CLS"

	cmdZeroCheckOn  = "SYST:ZCH ON"
	cmdZeroCheckOff = "SYST:ZCH OFF"
	cmdZeroCorrect  = "SYST:ZCOR ON"
	cmdFuncCurrent  = `FUNC "CURR"`
	cmdRangeAuto    = "SENS:CURR:RANG:AUTO ON"
	cmdFormatElems  = "FORM:ELEM READ,TIME"
	cmdTraceTstamp  = "TRAC:TST:FORM DELT"
	cmdArmImmediate = "ARM:SOUR IMM"

	cmdTrigImmediate = "TRIG:SOUR IMM"
	cmdTrigExternal  = "TRIG:SOUR TLIN"

	cmdRead       = "READ?"
	cmdFetch      = "FETC?"
	cmdErrorQueue = "SYST:ERR?"

	cmdNplcFmt = "SENS:CURR:NPLC %.2f"
)

type Device struct { //nolint:maligned
	lk    sync.Mutex // one domain over transport and cached mirror
	log   *log2.Log
	conn  gpib.Conn
	state DeviceState

	// cached mirror of instrument settings
	measRange Range
	nplc      float64
	trigger   TriggerMode
	zeroCheck bool

	buffer    BufferStatus
	bufferCap int
}

// Init attaches the transport, verifies instrument identity and brings
// the device to the known baseline state. On identity mismatch or any
// startup fault the transport is closed before returning; the process
// must not drive an unverified instrument.
func (self *Device) Init(conn gpib.Conn, log *log2.Log) error {
	const tag = "keithley.Init"

	self.lk.Lock()
	defer self.lk.Unlock()
	if self.state != StateInvalid {
		return errors.Errorf("%s: state=%s want invalid", tag, self.state)
	}
	self.conn = conn
	self.log = log
	self.state = StateInited

	idn, err := conn.Query(cmdIdentify)
	if err != nil {
		self.failFatal()
		return errors.Annotate(err, tag)
	}
	self.log.Infof("identity: %s", idn)
	if !strings.Contains(idn, expectModel) {
		self.failFatal()
		return errors.Annotatef(ErrIdentity, "%s response=%q", tag, idn)
	}

	if err := self.resetLocked(); err != nil {
		self.failFatal()
		return errors.Annotate(err, tag)
	}
	self.state = StateReady
	return nil
}

// failFatal releases the transport on the startup failure path.
func (self *Device) failFatal() {
	self.state = StateFaulted
	if self.conn != nil {
		if err := self.conn.Close(); err != nil {
			self.log.Errorf("close after fatal fault: %v", err)
		}
	}
}

func (self *Device) State() DeviceState {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.state
}

func (self *Device) Close() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if self.conn == nil {
		return nil
	}
	err := self.conn.Close()
	self.conn = nil
	return errors.Annotate(err, "keithley.Close")
}

// Reset re-runs the hard reset and baseline setup, not the identity
// check. Exposed as the reset command.
func (self *Device) Reset() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return errors.Annotate(self.resetLocked(), "keithley.Reset")
}

// resetLocked issues the full baseline sequence. Order is load-bearing:
// zero-correction must be captured with zero-check engaged, the guard
// is lifted only after function, range and formats are in place, and
// integration speed goes last.
func (self *Device) resetLocked() error {
	seq := []string{
		cmdReset,
		cmdClearStat,
		cmdZeroCheckOn,
		cmdFuncCurrent,
		cmdRangeAuto,
		cmdZeroCorrect,
		cmdFormatElems,
		cmdTraceTstamp,
		cmdArmImmediate,
		cmdTrigImmediate,
		cmdZeroCheckOff,
		fmt.Sprintf(cmdNplcFmt, baselineNplc),
	}
	for _, d := range seq {
		if err := self.conn.Write(d); err != nil {
			return errors.Annotatef(err, "setup directive=%s", d)
		}
	}
	// every cached field now mirrors a value actually on the wire
	self.measRange = RangeAuto
	self.nplc = baselineNplc
	self.trigger = TriggerAutomatic
	self.zeroCheck = false
	self.buffer = BufferUnconfigured
	self.bufferCap = 0
	return nil
}

func (self *Device) Range() Range {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.measRange
}

func (self *Device) SetRange(r Range) error {
	const tag = "keithley.SetRange"
	if !r.Valid() {
		return ValidationError{Prop: "range", Value: fmt.Sprintf("%d", uint8(r)), Reason: "unknown range index"}
	}
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.conn.Write(r.directive()); err != nil {
		return errors.Annotate(err, tag)
	}
	self.measRange = r
	self.log.Debugf("set range=%s", r)
	return nil
}

func (self *Device) Speed() float64 {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.nplc
}

// SetSpeed sets integration time in power-line cycles. The directive
// carries two decimal places; the cache stores the same rounded value
// so reads return exactly what went on the wire.
func (self *Device) SetSpeed(nplc float64) error {
	const tag = "keithley.SetSpeed"
	if math.IsNaN(nplc) || nplc < NplcMin || nplc > NplcMax {
		return ValidationError{
			Prop:   "speed",
			Value:  fmt.Sprintf("%v", nplc),
			Reason: fmt.Sprintf("NPLC outside [%v, %v]", NplcMin, NplcMax),
		}
	}
	self.lk.Lock()
	defer self.lk.Unlock()
	rounded := math.Round(nplc*100) / 100
	if err := self.conn.Write(fmt.Sprintf(cmdNplcFmt, rounded)); err != nil {
		return errors.Annotate(err, tag)
	}
	self.nplc = rounded
	self.log.Debugf("set speed=%.2f", rounded)
	return nil
}

func (self *Device) Trigger() TriggerMode {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.trigger
}

func (self *Device) SetTrigger(m TriggerMode) error {
	const tag = "keithley.SetTrigger"
	if !m.Valid() {
		return ValidationError{Prop: "trigger", Value: fmt.Sprintf("%d", uint8(m)), Reason: "unknown trigger mode"}
	}
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.conn.Write(m.directive()); err != nil {
		return errors.Annotate(err, tag)
	}
	self.trigger = m
	self.log.Debugf("set trigger=%s", m)
	return nil
}

func (self *Device) ZeroCheck() bool {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.zeroCheck
}

func (self *Device) SetZeroCheck(on bool) error {
	const tag = "keithley.SetZeroCheck"
	d := cmdZeroCheckOff
	if on {
		d = cmdZeroCheckOn
	}
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.conn.Write(d); err != nil {
		return errors.Annotate(err, tag)
	}
	self.zeroCheck = on
	self.log.Debugf("set zerocheck=%t", on)
	return nil
}

// ReadCurrent returns the live measurement in amperes. Automatic
// trigger mode issues READ? which triggers a fresh sample, external
// mode issues FETC? returning the last latched one. First numeric field
// is the reading, auxiliary fields (timestamp) are discarded.
func (self *Device) ReadCurrent() (float64, error) {
	const tag = "keithley.ReadCurrent"

	self.lk.Lock()
	defer self.lk.Unlock()
	q := cmdRead
	if self.trigger == TriggerExternal {
		q = cmdFetch
	}
	vals, err := self.conn.QueryNumeric(q)
	if err != nil {
		return 0, errors.Annotate(numericFault(q, err), tag)
	}
	if len(vals) == 0 {
		return 0, ProtocolError{Directive: q, Response: ""}
	}
	self.log.Debugf("read current=%e", vals[0])
	return vals[0], nil
}

// QueryRaw passes a directive straight to the instrument, bypassing the
// translator. Diagnostics escape hatch.
func (self *Device) QueryRaw(directive string) (string, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.conn.Query(directive)
}

// WriteRaw is the write-only escape hatch. The cached mirror is not
// touched: the caller owns whatever state the directive changed.
func (self *Device) WriteRaw(directive string) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.conn.Write(directive)
}

// ReadErrors drains the instrument's error queue and returns the lines
// verbatim. The queue ends with `0,"No error"`.
func (self *Device) ReadErrors() (string, error) {
	const tag = "keithley.ReadErrors"

	self.lk.Lock()
	defer self.lk.Unlock()
	lines := make([]string, 0, 4)
	for i := 0; i < errorQueueMax; i++ {
		line, err := self.conn.Query(cmdErrorQueue)
		if err != nil {
			return "", errors.Annotate(err, tag)
		}
		lines = append(lines, line)
		if strings.HasPrefix(strings.TrimSpace(line), "0,") {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}
