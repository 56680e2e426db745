package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"plantdoctor/internal/config"
	"plantdoctor/internal/logger"
	"plantdoctor/internal/models"
	"plantdoctor/internal/repository"
	"plantdoctor/internal/repository/sqlite"
	"plantdoctor/internal/routes"
	"plantdoctor/internal/services/ai"
	"plantdoctor/internal/services/storage"
	"plantdoctor/internal/services/translate"
	ws "plantdoctor/internal/services/websocket"
	"plantdoctor/internal/session"
	"plantdoctor/internal/vision"
)

const translationTTL = 7 * 24 * time.Hour

// App holds everything a run needs. It is built once and is read-only afterwards.
type App struct {
	config     *config.Config
	logger     *logger.Logger
	classifier ai.Classifier
	detector   *vision.LeafDetector
	gate       vision.Gate
	faces      *vision.FaceRejector
	translator translate.Translator
	redis      *redis.Client

	db          *sqlite.DB
	predictions repository.PredictionRepository
	snapshots   *storage.SnapshotService
}

// ImageResult is the outcome of classifying a single file.
type ImageResult struct {
	Path            string
	Prediction      ai.Prediction
	TranslatedLabel string
}

// New loads the model, labels and face cascade and sets up translation and
// the optional history database.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	labels, err := ai.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	classifier, err := ai.New(cfg.ModelPath, labels, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:     cfg,
		logger:     log,
		classifier: classifier,
		detector:   vision.NewLeafDetector(vision.LeafDetectorOptions{KernelSize: cfg.Detection.KernelSize}),
		gate:       vision.NewGate(gateConfig(cfg.Detection)),
	}

	// Bez kaskady sesja działa dalej, tylko nie odrzuca twarzy
	faces, err := vision.NewFaceRejector(cfg.FaceCascadePath)
	if err != nil {
		log.Warning("Face rejection disabled: %v", err)
	}
	a.faces = faces
	log.Debug("Face rejection enabled: %t, leaf gate: %+v", faces.Enabled(), a.gate.Config())

	a.translator, a.redis, err = newTranslator(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.HistoryEnabled() {
		if err := a.openHistory(); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.Info("🤖 Model %s loaded with %d labels", cfg.ModelPath, len(labels))
	return a, nil
}

func gateConfig(d config.Detection) vision.GateConfig {
	return vision.GateConfig{
		MinArea:         d.MinArea,
		MinAreaFraction: d.MinAreaFraction,
		MaxAreaFraction: d.MaxAreaFraction,
		MinGreenRatio:   d.MinGreenRatio,
		MinSolidity:     d.MinSolidity,
		MaxSolidity:     d.MaxSolidity,
		MinAspectRatio:  d.MinAspectRatio,
		MaxAspectRatio:  d.MaxAspectRatio,
		MaxCircularity:  d.MaxCircularity,
	}
}

// newTranslator returns a pass-through translator for English and a cached
// Google translator otherwise. The redis client is returned so it can be closed.
func newTranslator(cfg *config.Config, log *logger.Logger) (translate.Translator, *redis.Client, error) {
	if cfg.TargetLanguage == "" || cfg.TargetLanguage == "en" {
		return translate.Noop{}, nil, nil
	}

	google := translate.NewGoogleTranslator(cfg.TargetLanguage, cfg.TranslateTimeout)

	switch cfg.TranslationCache {
	case "none", "":
		log.Info("Translating labels to %s without cache", google.Target())
		return google, nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warning("Redis at %s unavailable, using in-memory translation cache: %v", cfg.RedisAddr, err)
			client.Close()
			break
		}
		cache := translate.NewRedisCache(client)
		log.Info("Translating labels to %s, cached in redis at %s", google.Target(), cfg.RedisAddr)
		return translate.NewCachedTranslator(google, cache, cfg.TargetLanguage, translationTTL, log), client, nil
	case "memory":
	default:
		return nil, nil, fmt.Errorf("unknown translation cache %q", cfg.TranslationCache)
	}

	cache, err := translate.NewMemoryCache(cfg.TranslationCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create translation cache: %w", err)
	}
	log.Info("Translating labels to %s, cached in memory", google.Target())
	return translate.NewCachedTranslator(google, cache, cfg.TargetLanguage, translationTTL, log), nil, nil
}

func (a *App) openHistory() error {
	if err := os.MkdirAll(filepath.Dir(a.config.HistoryDB), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(a.config.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	a.db = db
	a.predictions = sqlite.NewPredictionRepository(db)
	a.snapshots = storage.NewSnapshotService(a.config.SnapshotDirectory, a.config.SnapshotBufferLimit, a.logger)
	a.logger.Info("History database: %s", a.config.HistoryDB)
	return nil
}

// Predictions returns the history repository, or nil when history is disabled.
func (a *App) Predictions() repository.PredictionRepository {
	return a.predictions
}

// ClassifyImage classifies one image file and records it as an image-mode prediction.
func (a *App) ClassifyImage(ctx context.Context, path string) (ImageResult, error) {
	return a.ClassifyFile(ctx, path, models.SourceImage)
}

// ClassifyFile classifies the image at path and stores the result under source
// when history is enabled.
func (a *App) ClassifyFile(ctx context.Context, path, source string) (ImageResult, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return ImageResult{}, fmt.Errorf("failed to load image %s", path)
	}

	pred, err := a.classifier.Classify(img, ai.SwapToRGB)
	if err != nil {
		return ImageResult{}, fmt.Errorf("failed to classify %s: %w", path, err)
	}

	result := ImageResult{
		Path:            path,
		Prediction:      pred,
		TranslatedLabel: translate.Label(ctx, a.translator, pred.Label, a.logger),
	}
	a.logger.Info("Image %s classified as %s (%.2f%%)", filepath.Base(path), pred.Label, pred.Confidence*100)

	if a.predictions != nil {
		_, err := a.predictions.Insert(&models.Prediction{
			Source:          source,
			Label:           pred.Label,
			TranslatedLabel: result.TranslatedLabel,
			Confidence:      pred.Confidence,
			ImagePath:       path,
		})
		if err != nil {
			a.logger.Error("Failed to store prediction for %s: %v", path, err)
		}
	}
	return result, nil
}

// RunCamera runs one live session on the configured camera. When a preview
// address is set the hub and HTTP server run next to the session and are
// stopped once it ends.
func (a *App) RunCamera(ctx context.Context) (session.Result, error) {
	source, err := session.OpenCamera(a.config.CameraIndex)
	if err != nil {
		return session.Result{}, err
	}
	return a.runSession(ctx, source, a.newDisplay)
}

// runSession owns source from here on. Background services are always
// stopped and waited for before it returns.
func (a *App) runSession(ctx context.Context, source session.FrameSource, newDisplay func(*ws.HubService) session.Display) (session.Result, error) {
	bgCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(bgCtx)

	var hub *ws.HubService
	if a.config.PreviewAddr != "" {
		hub = ws.NewHubService(a.logger)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		a.servePreview(gctx, g, hub)
	}

	if a.snapshots != nil {
		interval := time.Duration(a.config.SnapshotFlushInterval) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		g.Go(func() error {
			a.snapshots.Run(gctx, interval)
			return nil
		})
	}

	deps := session.Deps{
		Source:     source,
		Display:    newDisplay(hub),
		Detector:   a.detector,
		Faces:      a.faces,
		Gate:       a.gate,
		Classifier: a.classifier,
		Translator: a.translator,
		Logger:     a.logger,
	}
	if a.predictions != nil {
		deps.Recorder = &historyRecorder{
			sessionID:   uuid.NewString(),
			predictions: a.predictions,
			snapshots:   a.snapshots,
		}
	}

	controller, err := session.NewController(session.Options{
		Timeout:             a.config.SessionTimeout,
		ConfidenceThreshold: a.config.ConfidenceThreshold,
		ResultHold:          a.config.ResultHold,
	}, deps)
	if err != nil {
		source.Close()
		deps.Display.Close()
		a.stopServices(stop, g)
		return session.Result{}, err
	}

	result, err := controller.Run(ctx)
	a.stopServices(stop, g)

	a.logger.Info("Session ended: %s after %d frames (%s)", result.State, result.Frames, result.Elapsed.Round(time.Millisecond))
	return result, err
}

func (a *App) stopServices(stop context.CancelFunc, g *errgroup.Group) {
	stop()
	if err := g.Wait(); err != nil {
		a.logger.Error("Preview services stopped with error: %v", err)
	}
}

// servePreview starts the preview HTTP server in g and shuts it down when ctx ends.
// A failing server is logged and does not end the session.
func (a *App) servePreview(ctx context.Context, g *errgroup.Group, hub *ws.HubService) {
	server := &http.Server{
		Addr:    a.config.PreviewAddr,
		Handler: routes.SetupRoutes(hub, a.predictions, a.config, a.logger),
	}

	fmt.Printf("🌿 Plant Doctor preview\n")
	fmt.Printf("📍 URL: http://%s\n", a.config.PreviewAddr)
	if a.config.PreviewPassword != "" {
		fmt.Printf("🔑 Password protected\n")
	}
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Preview server failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

func (a *App) newDisplay(hub *ws.HubService) session.Display {
	var local session.Display = session.HeadlessDisplay{}
	if !a.config.Headless {
		local = session.NewWindowDisplay(session.WindowTitle)
	}
	if hub == nil {
		return local
	}
	return session.NewTeeDisplay(local, session.NewPreviewDisplay(hub, a.logger))
}

// Close releases the model, the cascade and the history database.
func (a *App) Close() error {
	var errs []error
	if a.classifier != nil {
		errs = append(errs, a.classifier.Close())
	}
	if a.faces != nil {
		errs = append(errs, a.faces.Close())
	}
	if a.snapshots != nil {
		a.snapshots.Flush()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// historyRecorder stores confident camera predictions with a JPEG of the result frame.
type historyRecorder struct {
	sessionID   string
	predictions repository.PredictionRepository
	snapshots   *storage.SnapshotService
}

func (r *historyRecorder) Record(_ context.Context, frame gocv.Mat, pred ai.Prediction, translated string) error {
	p := &models.Prediction{
		SessionID:       r.sessionID,
		Source:          models.SourceCamera,
		Label:           pred.Label,
		TranslatedLabel: translated,
		Confidence:      pred.Confidence,
	}

	if r.snapshots != nil && !frame.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		// GetBytes wskazuje na natywny bufor, kopia musi przeżyć Close
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()
		p.SnapshotPath = r.snapshots.AddSnapshot(data, r.sessionID, pred.Label)
	}

	if _, err := r.predictions.Insert(p); err != nil {
		return fmt.Errorf("failed to store prediction: %w", err)
	}
	return nil
}

var _ session.Recorder = (*historyRecorder)(nil)
