package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/srms-platform/srms-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := newRootCmd(postgres(logg)).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
