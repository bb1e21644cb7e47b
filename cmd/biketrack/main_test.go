package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/app"
	_ "github.com/phoenix-bikes/biketrack/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
