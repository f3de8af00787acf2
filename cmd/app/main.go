package main

import (
	"github.com/paramsgit/scribble/internal/app"
	"github.com/paramsgit/scribble/internal/config"
)

func main() {
	app.Go(config.Load())
}
