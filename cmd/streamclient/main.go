// Command streamclient streams a PCM or WAV file to the relay the way the
// ESP32 firmware does and prints every frame the relay sends back.
//
// Usage:
//
//	streamclient --file speech.wav [--url ws://host:8765/audio] [--text hello]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
