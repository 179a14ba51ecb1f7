package main

import (
	_ "github.com/joho/godotenv/autoload"
	"github.com/victor/stormcatalog/cmd"
)

func main() {
	cmd.Execute()
}
