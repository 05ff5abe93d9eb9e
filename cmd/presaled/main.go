// Command presaled runs the SPIDER presale backend.
package main

import "github.com/spider-presale/presale/internal/cli"

func main() {
	cli.Execute()
}
