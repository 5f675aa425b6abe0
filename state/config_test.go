package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbi-div-b/keithley6514/log2"
)

func TestParseFull(t *testing.T) {
	t.Parallel()

	input := `
gpib {
  address = "14"
  device = "/dev/ttyUSB0"
  baud = 115200
  log = true
}
listen = ":7514"
tele {
  enable = true
  broker = "tcp://broker.local:1883"
  topic_prefix = "lab/k6514"
}
`
	c, err := Parse(log2.NewTest(t, log2.LDebug), []byte(input))
	require.NoError(t, err)
	assert.Equal(t, "14", c.GPIB.Address)
	assert.Equal(t, "/dev/ttyUSB0", c.GPIB.Device)
	assert.Equal(t, 115200, c.GPIB.Baud)
	assert.True(t, c.GPIB.Log)
	assert.Equal(t, ":7514", c.Listen)
	assert.True(t, c.Tele.Enable)
	assert.Equal(t, "lab/k6514", c.Tele.TopicPrefix)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	c, err := Parse(log2.NewTest(t, log2.LDebug), []byte(`gpib { address="14" tcp="10.0.0.5:1234" }`))
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, c.Listen)
	assert.False(t, c.Tele.Enable)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
	}{
		{"no-address", `gpib { device="/dev/ttyUSB0" }`},
		{"no-link", `gpib { address="14" }`},
		{"both-links", `gpib { address="14" device="/dev/ttyUSB0" tcp="x:1234" }`},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(log2.NewTest(t, log2.LDebug), []byte(c.input))
			require.Error(t, err)
		})
	}
}
