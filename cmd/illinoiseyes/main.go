package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/capture"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/service"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/store"
)

func main() {
	cameraID := flag.Int("camera", 0, "video capture device ID")
	profile := flag.String("profile", "balanced", "detection profile: balanced, sensitive or strict")
	fps := flag.Int("fps", capture.DefaultFPS, "capture frame rate")
	flag.Parse()

	fmt.Println("IllinoisEyes - Object Presence Detection")

	// Initialize the store
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dbDir := filepath.Join(homeDir, ".illinoiseyes")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dbDir, "illinoiseyes.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	camera := capture.NewCamera(*cameraID)
	camera.SetFPS(*fps)

	svc, err := service.New(service.Config{
		Camera:  camera,
		Store:   st,
		Profile: *profile,
	})
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}

	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start detection: %v", err)
	}

	// Begin a learning pass immediately so detection comes up on its own.
	svc.Model().Start()

	fmt.Printf("Running with profile %q on camera %d, Ctrl-C to stop\n", svc.ProfileName(), *cameraID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	svc.Stop()
}
