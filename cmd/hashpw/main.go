// Command hashpw prints the bcrypt hash of a password so it can be placed
// in ADMIN_PASSWORD_HASH.  The server only ever compares hashes; this tool
// is how the one gets minted.
//
//	hashpw 's3cret'
//	BCRYPT_COST=12 hashpw 's3cret'
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/lectorium/ticketing/internal/utils"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <password>\n", os.Args[0])
		os.Exit(2)
	}

	cost := bcrypt.DefaultCost
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < bcrypt.MinCost || n > bcrypt.MaxCost {
			log.Fatalf("invalid BCRYPT_COST %q: want %d..%d", v, bcrypt.MinCost, bcrypt.MaxCost)
		}
		cost = n
	}

	hash, err := utils.HashPassword(os.Args[1], cost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
