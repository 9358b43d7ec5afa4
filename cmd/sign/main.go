package main

import (
	"fmt"
	"io"
	"os"

	"github.com/menu-planning/formgate/ingress/signature"
)

/* sign - Standalone CLI tool to compute a delivery signature header
 * Usage: go run cmd/sign/main.go [payload-file]
 * Reads the payload from the file (or stdin when no file is given) and
 * prints the Typeform-Signature header value for WEBHOOK_SECRET.
 * Exit codes: 0 = signed, 1 = error
 */

func main() {
	secretValue := os.Getenv("WEBHOOK_SECRET")
	if secretValue == "" {
		fmt.Fprintln(os.Stderr, "WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	secret, err := signature.ParseSecret(secretValue)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var payload []byte
	if len(os.Args) > 1 {
		payload, err = os.ReadFile(os.Args[1])
	} else {
		payload, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(signature.Sign(secret, payload))
}
