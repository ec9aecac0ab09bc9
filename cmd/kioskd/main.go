// kioskd runs on the Raspberry Pi behind the television: it launches the
// viewer page in a kiosk browser and forwards infrared remote-control
// presses to the central server, which relays them to every connected
// viewer.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/AglarEdain/raspberryday/internal/models"
	"github.com/AglarEdain/raspberryday/pkg/lirc"
)

var buttonCommands = map[string]models.RemoteCommand{
	"KEY_RIGHT":      models.CommandNext,
	"KEY_LEFT":       models.CommandPrevious,
	"KEY_PLAY":       models.CommandTogglePlay,
	"KEY_PAUSE":      models.CommandTogglePlay,
	"KEY_VOLUMEUP":   models.CommandVolumeUp,
	"KEY_VOLUMEDOWN": models.CommandVolumeDown,
}

func main() {
	serverURL := getEnv("SERVER_URL", "http://localhost:3000")
	socketPath := getEnv("LIRC_SOCKET", lirc.DefaultSocketPath)
	kioskURL := getEnv("KIOSK_URL", serverURL+"/viewer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}

	listener := lirc.New(socketPath)
	listener.SetEventCallback(func(event lirc.Event) {
		// Held buttons repeat; only the initial press counts.
		if event.Repeat != 0 {
			return
		}

		command, ok := buttonCommands[event.Button]
		if !ok {
			log.Printf("Ignoring unmapped button %s", event.Button)
			return
		}

		if err := sendCommand(ctx, client, serverURL, command); err != nil {
			log.Printf("Failed to send %s: %v", command, err)
		}
	})

	if err := listener.Start(ctx); err != nil {
		log.Fatalf("Failed to start remote listener: %v", err)
	}

	go launchBrowser(ctx, kioskURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-listener.Done():
		log.Println("Remote listener stopped")
	}

	cancel()
	listener.Stop()
	log.Println("kioskd stopped")
}

func sendCommand(ctx context.Context, client *http.Client, serverURL string, command models.RemoteCommand) error {
	body, err := json.Marshal(map[string]string{"command": string(command)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		serverURL+"/api/v1/remote/command", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func launchBrowser(ctx context.Context, url string) {
	cmd := exec.CommandContext(ctx, "chromium-browser",
		"--noerrdialogs",
		"--disable-session-crashed-bubble",
		"--kiosk", url)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		log.Printf("Kiosk browser exited: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
