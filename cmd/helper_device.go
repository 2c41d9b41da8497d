package cmd

import (
	"github.com/spf13/pflag"

	"github.com/wemokit/wemoscrape/pkg/wemo"
)

// deviceFlags registers the flags shared by every command that talks
// to the device.
func deviceFlags(f *pflag.FlagSet) {
	f.StringP(
		"address",
		"a",
		"",
		"IP or host[:port] of the Wemo device")

	f.Duration(
		"device-timeout",
		wemo.DefaultTimeout,
		"maximum time for the device to answer a single query")
}
