// Command hashpw prints the bcrypt hash of a password for use as
// ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"

	"captcha-service/internal/auth/credentials"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}

	hash, err := credentials.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
