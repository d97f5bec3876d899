package main

import (
	"log"

	"github.com/spigell/hiregate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
