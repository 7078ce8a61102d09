// The main package for the gradcafe executable.
package main

import (
	"github.com/gradharvest/gradcafe-crawler/cmd"
)

func main() {
	cmd.Execute()
}
