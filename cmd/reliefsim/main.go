// Command reliefsim runs post-disaster mobility scenarios and exports the
// paths every simulated agent travels.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
