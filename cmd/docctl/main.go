package main

import "github.com/njprem/regdocs/internal/cli"

func main() {
	cli.Execute()
}
