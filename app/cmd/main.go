package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trimborder/app/server"
	"trimborder/logging"
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

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	s := server.NewServer(addr, cfg.SourceDir, spec)

	go s.Run()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using the environment")
	}
}
