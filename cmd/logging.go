package cmd

import (
	"github.com/lumenrt/lumen/log"
	"github.com/urfave/cli"
)

var logger = log.New("lumen")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
