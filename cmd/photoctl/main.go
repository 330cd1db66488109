package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const PHOTOS_SERVER = "PHOTOS_SERVER"

func main() {
	_ = godotenv.Load()

	server := os.Getenv(PHOTOS_SERVER)
	if server == "" {
		server = "http://localhost:8070"
	}

	if err := newRootCmd(server).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
