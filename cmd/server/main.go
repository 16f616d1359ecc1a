package main

import (
	"github.com/OFFIS-RIT/c4designer/internal/bootstrap"
	"github.com/OFFIS-RIT/c4designer/internal/server"
	"github.com/OFFIS-RIT/c4designer/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("server")

	server.Init()
}
