package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/server"
)

func main() {
	os.Exit(server.Main(context.Background(), os.Args[1:]))
}
