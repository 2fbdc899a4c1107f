package main

import "github.com/mvp-joe/phpintel/internal/cli"

func main() {
	cli.Execute()
}
