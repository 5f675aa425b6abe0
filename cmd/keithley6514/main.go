// keithley6514 drives one Keithley 6514 electrometer over GPIB and
// serves its properties and commands to remote control processes.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"

	"github.com/mbi-div-b/keithley6514/keithley"
	"github.com/mbi-div-b/keithley6514/log2"
	"github.com/mbi-div-b/keithley6514/server"
	"github.com/mbi-div-b/keithley6514/state"
	"github.com/mbi-div-b/keithley6514/tele"
)

// identity or transport fault at startup: the instrument cannot be
// driven safely, distinguish from ordinary exit.
const exitCodeFatal = 255

var log = log2.NewStderr(log2.LInfo)

func main() {
	flagConfig := flag.String("config", "keithley6514.hcl", "")
	flag.Parse()

	if sdnotify("READY=0\nSTATUS=starting") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LServiceFlags)
	}
	log.Infof("hello")

	config := state.MustReadFile(log, *flagConfig)
	if config.GPIB.Log {
		log.SetLevel(log2.LDebug)
	}

	tl := tele.New()
	if err := tl.Init(log, config.Tele); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	conn, err := config.OpenGPIB(log)
	if err != nil {
		log.Errorf(errors.ErrorStack(err))
		os.Exit(exitCodeFatal)
	}

	dev := new(keithley.Device)
	if err := dev.Init(conn, log); err != nil {
		// transport already released by Init on the fatal path
		tl.State(dev.State().String())
		tl.Close()
		log.Errorf(errors.ErrorStack(err))
		os.Exit(exitCodeFatal)
	}
	tl.State(dev.State().String())

	srv := server.New(log, dev, tl)
	if err := srv.ListenAndServe(config.Listen); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	sdnotify(daemon.SdNotifyReady)
	log.Infof("init complete, serving addr=%s", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("signal=%v stopping", sig)
	sdnotify("STOPPING=1")

	srv.Stop()
	tl.Close()
	if err := dev.Close(); err != nil {
		log.Errorf(errors.ErrorStack(err))
	}
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
