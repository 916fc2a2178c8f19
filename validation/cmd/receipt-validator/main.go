package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vicodeox/stackAuc/validation"
)

func main() {
	var (
		receiptInput = flag.String("receipt", "", "Signed receipt (file path or inline base64)")
		keyInput     = flag.String("public-key", "", "Engine public key PEM (file path or inline PEM)")
		outputFormat = flag.String("format", "text", "Output format: text or json")
		help         = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *keyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: both inputs are required (--receipt, --public-key)\n")
		os.Exit(1)
	}

	signed, err := readBase64Input(*receiptInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}

	pemData, err := readRawInput(*keyInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}
	publicKey, err := validation.ParsePublicKeyPEM(pemData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing public key: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.VerifyReceipt(signed, publicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement receipt against the engine's public key.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <file-or-base64> --public-key <file-or-pem> [--format text|json]")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  receipt is valid")
	fmt.Println("  1  receipt failed validation")
	fmt.Println("  2  input or processing error")
}

// readBase64Input accepts either a file path or an inline base64 string
// and returns the decoded bytes.
func readBase64Input(input string) ([]byte, error) {
	raw, err := readRawInput(input)
	if err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return decoded, nil
}

func readRawInput(input string) ([]byte, error) {
	if _, err := os.Stat(input); err == nil {
		return os.ReadFile(input)
	}
	return []byte(input), nil
}

func outputJSON(result *validation.ReceiptValidationResult) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(out))
}

func outputText(result *validation.ReceiptValidationResult) {
	status := func(ok bool) string {
		if ok {
			return "PASS"
		}
		return "FAIL"
	}
	fmt.Printf("Signature: %s\n", status(result.SignatureValid))
	fmt.Printf("Hash:      %s\n", status(result.HashValid))
	fmt.Printf("Totals:    %s\n", status(result.TotalsValid))
	if result.Receipt != nil {
		fmt.Printf("Auction:   %d\n", result.Receipt.AuctionID)
		fmt.Printf("Winner:    %s\n", result.Receipt.Winner)
		fmt.Printf("Price:     %d %s\n", result.Receipt.ClearingPrice, result.Receipt.Token)
	}
	for _, d := range result.ValidationDetails {
		fmt.Printf("  - %s\n", d)
	}
	if result.IsValid() {
		fmt.Println("Receipt is VALID")
	} else {
		fmt.Println("Receipt is INVALID")
	}
}
