package main

import (
	"log"

	"github.com/anoixa/pattern-vault/config"

	"github.com/anoixa/pattern-vault/cmd"
)

func main() {
	log.Printf("pattern vault %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
