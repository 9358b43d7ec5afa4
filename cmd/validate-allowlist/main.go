package main

import (
	"fmt"
	"os"

	"github.com/menu-planning/formgate/egress"
)

/* validate-allowlist - Standalone CLI tool to validate allowlist.yaml
 * Usage: go run cmd/validate-allowlist/main.go [allowlist.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	// Get allowlist file path from args or use default
	allowlistFile := "allowlist.yaml"
	if len(os.Args) > 1 {
		allowlistFile = os.Args[1]
	}

	// Print validation header
	fmt.Printf("Validating allowlist file: %s\n", allowlistFile)

	// Attempt to load and compile the policy
	policy, err := egress.LoadPolicy(allowlistFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Success - print compiled rules
	rules := policy.Rules()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d rule(s):\n", len(rules))

	for i, rule := range rules {
		fmt.Printf("\n%d. %s %s\n", i+1, rule.Method, rule.Pattern)
	}

	fmt.Printf("\n✓ All rules are valid!\n")
	os.Exit(0)
}
