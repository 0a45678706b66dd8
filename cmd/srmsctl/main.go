package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/srms-platform/srms-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "srmsctl"})
	root := newRootCmd(deps{caches: redisCaches(logg), jwt: envJWT, letters: postgresDeadLetters(logg)})
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
