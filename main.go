package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/marciobastos-droid/propmatch/cmd"
)

func main() {
	// A .env file is optional, environment takes over if it is absent.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
