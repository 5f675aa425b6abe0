package server

import (
	"bufio"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbi-div-b/keithley6514/gpib"
	"github.com/mbi-div-b/keithley6514/keithley"
	"github.com/mbi-div-b/keithley6514/log2"
)

const idnGood = "KEITHLEY INSTRUMENTS INC.,MODEL 6514,1234567,A10"

func newTestServer(t testing.TB) (*Server, *gpib.MockConn) {
	mock := gpib.NewMockConn(t)
	mock.ExpectMap(map[string]string{"*IDN?": idnGood})
	d := new(keithley.Device)
	require.NoError(t, d.Init(mock, log2.NewTest(t, log2.LDebug)))
	return New(log2.NewTest(t, log2.LDebug), d, nil), mock
}

func TestExecProperties(t *testing.T) {
	t.Parallel()

	s, mock := newTestServer(t)
	mock.ExpectMap(map[string]string{"READ?": "-4.200000E-08,+1.0"})

	assert.Equal(t, "range=auto", s.Exec("get range"))
	assert.Equal(t, "ok", s.Exec("set range 200e-9"))
	assert.Equal(t, "range=200e-9", s.Exec("get range"))

	assert.Equal(t, "ok", s.Exec("set speed 5.55"))
	assert.Equal(t, "speed=5.55", s.Exec("get speed"))

	assert.Equal(t, "ok", s.Exec("set trigger external"))
	assert.Equal(t, "trigger=external", s.Exec("get trigger"))
	assert.Equal(t, "ok", s.Exec("set trigger automatic"))

	assert.Equal(t, "ok", s.Exec("set zerocheck on"))
	assert.Equal(t, "zerocheck=on", s.Exec("get zerocheck"))
	assert.Equal(t, "ok", s.Exec("set zerocheck off"))

	assert.Equal(t, fmt.Sprintf("current=%e", -4.2e-08), s.Exec("get current"))
	assert.Equal(t, "state=ready", s.Exec("get state"))
}

func TestExecErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	assert.Contains(t, s.Exec("set speed 15"), "error:")
	assert.Contains(t, s.Exec("set range bogus"), "error:")
	assert.Contains(t, s.Exec("set current 1"), "read-only")
	assert.Contains(t, s.Exec("frobnicate"), "error:")
	assert.Contains(t, s.Exec("get speed extra"), "error:")
	// validation faults leave settings alone
	assert.Equal(t, "speed=1.00", s.Exec("get speed"))
}

func TestExecBuffer(t *testing.T) {
	t.Parallel()

	s, mock := newTestServer(t)
	mock.Expect([]gpib.MockR{
		{"TRAC:CLE", ""},
		{"TRAC:POIN 5", ""},
		{"TRAC:FEED SENS", ""},
		{"TRAC:FEED:CONT NEXT", ""},
		{"TRAC:POIN:ACT?", "+0"},
	})
	assert.Equal(t, "ok", s.Exec("buffer 5"))
	assert.Equal(t, "buffer=armed", s.Exec("get buffer"))
	assert.Equal(t, "-1,-1", s.Exec("readbuf"))
	assert.Equal(t, "buffer=empty", s.Exec("get buffer"))
}

func TestExecRaw(t *testing.T) {
	t.Parallel()

	s, mock := newTestServer(t)
	mock.ExpectMap(map[string]string{"SYST:ZCH?": "0"})
	assert.Equal(t, "0", s.Exec("raw? SYST:ZCH?"))
	assert.Equal(t, "ok", s.Exec("raw! DISP:ENAB OFF"))
	sent := mock.Sent()
	assert.Equal(t, "DISP:ENAB OFF", sent[len(sent)-1])
}

func TestTCPRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	require.NoError(t, s.ListenAndServe("127.0.0.1:0"))
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	br := bufio.NewReader(conn)
	send := func(line string) string {
		_, err := fmt.Fprintln(conn, line)
		require.NoError(t, err)
		reply, err := br.ReadString('\n')
		require.NoError(t, err)
		return reply[:len(reply)-1]
	}

	assert.Equal(t, "range=auto", send("get range"))
	assert.Equal(t, "ok", send("set range 2"))
	assert.Equal(t, "range=200e-12", send("get range"))
	assert.Contains(t, send("set speed 99"), "error:")
}
