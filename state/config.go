// Package state holds process configuration, HCL format.
package state

import (
	"io/ioutil"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"

	"github.com/mbi-div-b/keithley6514/gpib"
	"github.com/mbi-div-b/keithley6514/helpers"
	"github.com/mbi-div-b/keithley6514/log2"
	"github.com/mbi-div-b/keithley6514/tele"
)

const DefaultListen = "127.0.0.1:6514"

type Config struct {
	GPIB struct {
		// Address is the instrument's GPIB primary address, mandatory.
		Address string `hcl:"address"`
		// Device is the Prologix serial port; TCP is the gateway
		// host:port. Exactly one of the two.
		Device string `hcl:"device"`
		Baud   int    `hcl:"baud"`
		TCP    string `hcl:"tcp"`
		// Log enables directive-level debug logging.
		Log bool `hcl:"log"`
	} `hcl:"gpib"`

	Listen string `hcl:"listen"`

	Tele tele.Config `hcl:"tele"`
}

func Parse(log *log2.Log, bs []byte) (*Config, error) {
	c := &Config{}
	if err := hcl.Unmarshal(bs, c); err != nil {
		return nil, errors.Annotatef(err, "config unmarshal content='%s'", string(bs))
	}

	errs := make([]error, 0, 4)
	if c.GPIB.Address == "" {
		errs = append(errs, errors.NotValidf("config gpib.address is mandatory"))
	}
	switch {
	case c.GPIB.Device == "" && c.GPIB.TCP == "":
		errs = append(errs, errors.NotValidf("config gpib: one of device or tcp is required"))
	case c.GPIB.Device != "" && c.GPIB.TCP != "":
		errs = append(errs, errors.NotValidf("config gpib: device and tcp are mutually exclusive"))
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if err := helpers.FoldErrors("config", errs); err != nil {
		return nil, err
	}
	log.Debugf("config=%+v", c)
	return c, nil
}

func ReadFile(log *log2.Log, path string) (*Config, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config read path=%s", path)
	}
	return Parse(log, bs)
}

func MustReadFile(log *log2.Log, path string) *Config {
	c, err := ReadFile(log, path)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// OpenGPIB builds the instrument link described by the config.
func (c *Config) OpenGPIB(log *log2.Log) (gpib.Conn, error) {
	if c.GPIB.TCP != "" {
		return gpib.OpenTCP(log, c.GPIB.TCP, c.GPIB.Address)
	}
	return gpib.OpenSerial(log, c.GPIB.Device, c.GPIB.Baud, c.GPIB.Address)
}
