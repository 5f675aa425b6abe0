// gpib-cli is an interactive diagnostics prompt: directives typed in
// are passed to the instrument verbatim, bypassing the driver.
package main

import (
	"flag"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"

	"github.com/mbi-div-b/keithley6514/gpib"
	"github.com/mbi-div-b/keithley6514/helpers/cli"
	"github.com/mbi-div-b/keithley6514/log2"
)

const usage = `lines are sent to the instrument verbatim, trailing '?' reads a response
(meta)
- clr      selected device clear
- log=yes  enable wire debug logging
- log=no   disable wire debug logging
- help     this text
`

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	device := cmdline.String("device", "", "Prologix serial port, e.g. /dev/ttyUSB0")
	baud := cmdline.Int("baud", gpib.DefaultBaud, "serial baud rate")
	tcpAddr := cmdline.String("tcp", "", "Prologix ethernet gateway host:port")
	gpibAddr := cmdline.String("addr", "14", "instrument GPIB address")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)
	// the wire chatter gets its own logger so log=yes/no toggles only it
	wireLog := log.Clone(log2.LDebug)

	var conn gpib.Conn
	var err error
	switch {
	case *tcpAddr != "":
		conn, err = gpib.OpenTCP(wireLog, *tcpAddr, *gpibAddr)
	case *device != "":
		conn, err = gpib.OpenSerial(wireLog, *device, *baud, *gpibAddr)
	default:
		log.Fatal("one of -device or -tcp is required")
	}
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer conn.Close()

	cli.MainLoop("gpib", newExecutor(conn, wireLog), newCompleter())
}

func newExecutor(conn gpib.Conn, wireLog *log2.Log) func(string) {
	return func(line string) {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == "help":
			log.Infof(usage)
		case line == "log=yes":
			wireLog.SetLevel(log2.LDebug)
		case line == "log=no":
			wireLog.SetLevel(log2.LInfo)
		case line == "clr":
			if err := conn.Clear(); err != nil {
				log.Errorf(errors.ErrorStack(err))
			}
		case strings.HasSuffix(strings.Fields(line)[0], "?"):
			response, err := conn.Query(line)
			if err != nil {
				log.Errorf(errors.ErrorStack(err))
				return
			}
			log.Infof("< %s", response)
		default:
			if err := conn.Write(line); err != nil {
				log.Errorf(errors.ErrorStack(err))
			}
		}
	}
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "*IDN?", Description: "instrument identity"},
		{Text: "*RST", Description: "hard reset"},
		{Text: "READ?", Description: "trigger and read"},
		{Text: "FETC?", Description: "fetch last reading"},
		{Text: "SYST:ERR?", Description: "pop error queue"},
		{Text: "SYST:ZCH ON", Description: "engage zero-check"},
		{Text: "SYST:ZCH OFF", Description: "disengage zero-check"},
		{Text: "SENS:CURR:RANG:AUTO ON", Description: "auto-range"},
		{Text: "TRAC:POIN:ACT?", Description: "buffered sample count"},
		{Text: "TRAC:DATA?", Description: "drain sample buffer"},
		{Text: "clr", Description: "selected device clear"},
		{Text: "help", Description: "usage"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}
