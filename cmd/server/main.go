// Package main implements the entry point for the ankibridge server,
// which manages language-learning flashcards and synchronizes them to a
// local Anki instance over AnkiConnect.
package main

import (
	"context"
	"log"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(context.Background()); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
