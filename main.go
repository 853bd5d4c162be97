package main

import (
	"os"

	"github.com/caionorder/redirectd/internal/app"
)

func main() {
	os.Exit(app.Main())
}
