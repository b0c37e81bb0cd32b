package main

import (
	"context"

	"github.com/Blackdeer1524/multixact/cmd/mxlog/app"
)

func main() {
	app.MustExecute(context.Background())
}
