package main

import (
	"os"

	"horse.fit/bdradar/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
