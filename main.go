package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"pdf2md/cmd"
	"pdf2md/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Configuration needs the parsed flags, so commands reconfigure the
	// logger once cobra has run; until then log to stderr with defaults.
	if err := logger.Setup(logger.DefaultConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
