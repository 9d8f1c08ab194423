package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trimborder/loader/service"
	"trimborder/logging"
	"trimborder/store"
	"trimborder/types"
)

func init() {
	loadEnvVariables()
	logging.Setup()
}

func main() {
	spec, err := types.BorderSpecFromEnv(types.DefaultBorderSpec())
	if err != nil {
		log.Fatal("invalid border configuration: ", err)
	}
	cfg, err := types.ConfigFromEnv()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx)
	if err != nil {
		log.Fatal("error to open job store: ", err)
	}
	defer func() {
		log.Println("Closing job store...")
		if err := st.Close(); err != nil {
			log.Printf("error closing store: %v\n", err)
		}
	}()

	svc, err := service.New(cfg, spec, st)
	if err != nil {
		log.Fatal("error to create directories: ", err)
	}
	svc.Run(ctx)
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using the environment")
	}
}
