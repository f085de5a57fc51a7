package main

import (
	"os"

	"github.com/tanpawarit/odoo-assistant/cmd"
	_ "github.com/tanpawarit/odoo-assistant/pkg/logger/autoload"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
