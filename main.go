package main

import (
	"bufio"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devconnect/config"
	"devconnect/db"
	"devconnect/logger"
	"devconnect/server"
)

const controlSocketPath = "/tmp/devconnect.sock"

func main() {
	cfg := config.Load()

	logs := logger.Init(logger.Options{
		Dir:     cfg.LogDir,
		Console: true,
		Debug:   cfg.Debug,
	})
	defer logs.Close()

	database, err := db.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to initialize database", "driver", cfg.DBDriver, "error", err)
		logs.Close()
		os.Exit(1)
	}
	defer database.Close()

	srvConfig := &server.ServerConfig{
		Port:          cfg.Port,
		ReadTimeout:   time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.WriteTimeout) * time.Second,
		SessionSecret: cfg.SessionSecret,
		AllowedOrigin: cfg.AllowedOrigin,
		HistoryLimit:  cfg.HistoryLimit,
	}

	srv := server.New(database, srvConfig)

	// Start control socket for management commands
	go startControlSocket(srv)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig.String())
		srv.Shutdown("maintenance")
	}()

	if err := srv.Start(); err != nil {
		logger.Error("Server stopped", "error", err)
	}
	os.Remove(controlSocketPath)
}

func startControlSocket(srv *server.Server) {
	// Remove existing socket file
	os.Remove(controlSocketPath)

	listener, err := net.Listen("unix", controlSocketPath)
	if err != nil {
		logger.Warn("Failed to create control socket", "path", controlSocketPath, "error", err)
		return
	}
	defer listener.Close()

	logger.Info("Control socket listening", "path", controlSocketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}

		go handleControlCommand(srv, conn)
	}
}

// handleControlCommand serves one "stats" or "shutdown|reason" line.
func handleControlCommand(srv *server.Server, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	parts := strings.SplitN(strings.TrimSpace(line), "|", 2)

	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + srv.GetStats() + "\n"))

	case "shutdown":
		reason := "maintenance"
		if len(parts) == 2 && parts[1] != "" {
			reason = parts[1]
		}

		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		logger.Info("Shutdown requested", "reason", reason)
		srv.Shutdown(reason)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
