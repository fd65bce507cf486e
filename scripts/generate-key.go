// Package main is a development utility for seeding credentials in a local
// database without running the full server flow. It generates a project API
// key with its bcrypt hash and display prefix pre-computed, prints a
// ready-to-run SQL INSERT, and emits a fresh base64 ENCRYPTION_KEY value for
// the token cipher. Do not use generated keys in production; create keys
// through the admin API so they are audited.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/corebase/corebase/internal/auth"
)

func main() {
	fullKey, hash, displayPrefix, err := auth.GenerateAPIKey("cb")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("API Key Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nFull Key: %s\n", fullKey)
	fmt.Printf("\nHash: %s\n", hash)
	fmt.Printf("\nDisplay Prefix: %s\n", displayPrefix)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert (project 1):")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO api_keys (id, project_id, name, key_hash, key_prefix, permissions)
VALUES ('%s', 1, 'dev key', '%s', '%s', '["data:read","data:write"]');
`, uuid.New().String(), hash, displayPrefix)
	fmt.Println("\n==========================================================")
	fmt.Printf("Authorization Header: Bearer %s\n", fullKey)
	fmt.Println("==========================================================")

	encKey := make([]byte, 32)
	if _, err := rand.Read(encKey); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nFresh ENCRYPTION_KEY (base64, 32 bytes): %s\n", base64.StdEncoding.EncodeToString(encKey))
}
