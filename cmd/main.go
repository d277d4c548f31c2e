package main

import (
	"go.uber.org/fx"

	"signflow/internal/app"
)

func main() {
	fx.New(app.Options()).Run()
}
