// Command sentinel runs remediation, verification, and suppression workflows
// against cloud security findings.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
