package logger

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel("INFO")

	SetLogLevel("debug")
	assert.Equal(t, LevelDebug, GetLogLevel())

	SetLogLevel(" Warn ")
	assert.Equal(t, LevelWarn, GetLogLevel())

	SetLogLevel("verbose")
	assert.Equal(t, LevelInfo, GetLogLevel())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	flags := log.Flags()
	log.SetFlags(0)
	defer func() {
		SetOutput(os.Stderr)
		log.SetFlags(flags)
		SetLogLevel("INFO")
	}()

	SetLogLevel("WARN")
	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	assert.Equal(t, "[WARN] shown 3\n[ERROR] shown 4\n", buf.String())
}

func TestTrimClosureSuffix(t *testing.T) {
	assert.Equal(t, "main.registerHooks", trimClosureSuffix("main.registerHooks.func1"))
	assert.Equal(t, "main.run", trimClosureSuffix("main.run"))
}
