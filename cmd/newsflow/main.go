package main

import (
	"os"

	"starlit.dev/newsflow/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
