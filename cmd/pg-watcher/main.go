// Package main is the entry point for the pg-watcher policy watcher.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/pg-watcher/internal/pgwatcher"
)

func main() {
	pgwatcher.NewApp().Run()
}
