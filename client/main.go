package main

import (
	"flag"
	"fmt"
	"os"

	"devconnect/client/api"
	"devconnect/client/ui"
	"devconnect/config"
	"devconnect/logger"
)

func main() {
	cfg := config.LoadClient()

	apiURL := flag.String("api", cfg.APIBaseURL, "DevConnect HTTP API base URL")
	chatURL := flag.String("chat", cfg.ChatURL, "DevConnect websocket URL")
	debug := flag.Bool("debug", cfg.Debug, "enable debug logging")
	flag.Parse()

	cfg.APIBaseURL = *apiURL
	cfg.ChatURL = *chatURL
	cfg.Debug = *debug

	// The terminal belongs to tview, so logs only go to file.
	logs := logger.Init(logger.Options{
		Dir:   cfg.LogDir,
		Debug: cfg.Debug,
	})
	defer logs.Close()

	client, err := api.New(cfg.APIBaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := ui.NewApp(cfg, client)
	if err := app.Run(); err != nil {
		logs.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
