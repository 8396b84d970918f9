package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tokencheck <token>")
		os.Exit(1)
	}

	token := os.Args[1]
	result := auth.Validate(token, time.Now())
	fmt.Println(result)

	claims, err := auth.Decode(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode error: %v\n", err)
		os.Exit(1)
	}
	if claims.ExpiresAt != nil {
		fmt.Println("exp:", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	if result != auth.Valid {
		os.Exit(2)
	}
}
