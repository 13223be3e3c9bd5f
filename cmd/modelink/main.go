// Command modelink resolves model file references in workflow graphs.
package main

import "github.com/modelink/modelink/internal/cli"

func main() {
	cli.Execute()
}
