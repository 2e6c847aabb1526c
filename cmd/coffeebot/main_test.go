package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coffeebot/core/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	a := newApp()
	var out bytes.Buffer
	a.Writer = &out
	require.NoError(t, a.Run([]string{"coffeebot", "version"}))
	assert.Equal(t, buildinfo.String()+"\n", out.String())
}

func TestRunFailsOnMissingConfig(t *testing.T) {
	a := newApp()
	a.Writer = &bytes.Buffer{}
	err := a.Run([]string{"coffeebot", "--config", "/nonexistent/config.yaml", "run"})
	assert.ErrorContains(t, err, "failed to load config")
}
