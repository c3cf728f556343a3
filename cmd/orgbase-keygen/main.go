// Command orgbase-keygen prints a fresh random token signing key, hex
// encoded, suitable for ORGBASE_TOKEN_SECRET.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("bytes", 64, "Key size in bytes")
	flag.Parse()

	if *size < 32 {
		fmt.Fprintln(os.Stderr, "refusing to generate a key shorter than 32 bytes")
		os.Exit(1)
	}

	key := make([]byte, *size)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(key))
}
