package main

import (
	"os"

	"github.com/phuslu/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("waitsim failed")
		os.Exit(1)
	}
}
