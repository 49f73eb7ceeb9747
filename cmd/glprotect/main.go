// glprotect converges GitLab branch and tag protection to a declarative
// YAML policy, across every project in a namespace.
package main

import "github.com/ppiankov/glprotect/internal/cli"

func main() {
	cli.Execute()
}
