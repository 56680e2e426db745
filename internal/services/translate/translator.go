package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bregydoc/gtranslate"

	"plantdoctor/internal/logger"
)

const sourceLanguage = "en"

// Translator turns an English label into the target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Label translates label and falls back to the untranslated text on any failure.
func Label(ctx context.Context, t Translator, label string, log *logger.Logger) string {
	if t == nil || label == "" {
		return label
	}

	translated, err := t.Translate(ctx, label)
	if err != nil {
		if log != nil {
			log.Warning("Translation of %q failed, using original: %v", label, err)
		}
		return label
	}
	if strings.TrimSpace(translated) == "" {
		return label
	}
	return translated
}

// Noop returns the text unchanged.
type Noop struct{}

func (Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// GoogleTranslator translates through the public Google translate endpoint.
type GoogleTranslator struct {
	target    string
	timeout   time.Duration
	translate func(text string, params gtranslate.TranslationParams) (string, error)
}

// NewGoogleTranslator creates a translator from English into target. Each call
// gives up after timeout.
func NewGoogleTranslator(target string, timeout time.Duration) *GoogleTranslator {
	return &GoogleTranslator{
		target:    target,
		timeout:   timeout,
		translate: gtranslate.TranslateWithParams,
	}
}

// Target returns the target language code.
func (g *GoogleTranslator) Target() string {
	return g.target
}

// Translate sends the label as plain words. gtranslate has no context support,
// so the call runs in its own goroutine and is abandoned when ctx ends.
func (g *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	params := gtranslate.TranslationParams{From: sourceLanguage, To: g.target}
	go func() {
		translated, err := g.translate(readable(text), params)
		done <- reply{translated, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("translate request abandoned: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("translate request failed: %w", r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			return "", errors.New("translate response had no text")
		}
		return r.text, nil
	}
}

// readable turns dataset labels like "Tomato___Early_blight" into words.
func readable(label string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(label, "_", " ")), " ")
}
