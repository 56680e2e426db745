package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"plantdoctor/internal/app"
	"plantdoctor/internal/config"
	"plantdoctor/internal/logger"
	"plantdoctor/internal/session"
)

const (
	modeImage  = "1"
	modeCamera = "2"
)

func main() {
	mode := flag.String("mode", "", "1 = image, 2 = camera (prompted when empty)")
	imagePath := flag.String("image", "", "Image to classify in image mode (prompted when empty)")
	flag.Parse()

	input := bufio.NewReader(os.Stdin)

	choice := *mode
	if choice == "" {
		choice = prompt(input, os.Stdout, "Enter mode: 1 = Image, 2 = Camera: ")
	}
	if choice != modeImage && choice != modeCamera {
		fmt.Println("[ERROR] Invalid choice. Use 1 or 2.")
		return
	}

	path := *imagePath
	if choice == modeImage && path == "" {
		path = prompt(input, os.Stdout, "Enter image path: ")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Close()

	application, err := app.New(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if choice == modeImage {
		result, err := application.ClassifyImage(ctx, path)
		if err != nil {
			appLogger.Error("%v", err)
			fmt.Printf("[ERROR] %v\n", err)
			return
		}
		printImageResult(os.Stdout, result)
		return
	}

	result, err := application.RunCamera(ctx)
	if err != nil {
		appLogger.Error("Camera session failed: %v", err)
		fmt.Printf("[ERROR] %v\n", err)
		return
	}
	printSessionResult(os.Stdout, result)
}

// prompt writes question and returns the trimmed answer line.
func prompt(r *bufio.Reader, w io.Writer, question string) string {
	fmt.Fprint(w, question)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func printImageResult(w io.Writer, result app.ImageResult) {
	fmt.Fprintf(w, "Image: %s\n", filepath.Base(result.Path))
	fmt.Fprintf(w, "Prediction: %s (%.2f%%)\n", result.TranslatedLabel, result.Prediction.Confidence*100)
}

func printSessionResult(w io.Writer, result session.Result) {
	if result.State != session.Success {
		fmt.Fprintf(w, "Session ended: %s\n", result.State)
		return
	}
	fmt.Fprintf(w, "Prediction: %s (%.2f%%)\n", result.TranslatedLabel, result.Prediction.Confidence*100)
}
