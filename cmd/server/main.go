package main

import (
	"log"
)

func main() {
	config := LoadConfig()

	server, err := NewServer(config)
	if err != nil {
		log.Fatal("Server initialization failed:", err)
	}
	defer server.Close()

	if err := server.Run(); err != nil {
		log.Fatal("Server exited:", err)
	}
}
