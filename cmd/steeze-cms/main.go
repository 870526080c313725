package main

import (
	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-cms/pkg/serverfx"
)

func main() {
	fx.New(serverfx.Module(serverfx.DefaultOptions())).Run()
}
