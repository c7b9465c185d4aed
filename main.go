package main

import (
	_ "github.com/colloquyhq/colloquy/src/devstorage"
	_ "github.com/colloquyhq/colloquy/src/migration"
	"github.com/colloquyhq/colloquy/src/website"
)

func main() {
	website.ServiceCommand.Execute()
}
