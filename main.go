package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrsingh-rishi/speech-relay/config"
	"github.com/mrsingh-rishi/speech-relay/logging"
	"github.com/mrsingh-rishi/speech-relay/metrics"
	"github.com/mrsingh-rishi/speech-relay/server"
	"github.com/mrsingh-rishi/speech-relay/stt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rec, err := newRecognizer(cfg.Recognition, log)
	if err != nil {
		log.WithError(err).Fatal("speech backend unavailable")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(server.Options{
		Config:     cfg,
		Recognizer: rec,
		Logger:     log,
		Metrics:    metrics.NewMetrics(reg),
		Registry:   reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("backend", rec.Name()).
			Infof("Listening on ws://%s%s", cfg.Addr(), cfg.Server.Path)
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}
}

func newRecognizer(cfg config.RecognitionConfig, log *logrus.Logger) (stt.Recognizer, error) {
	switch cfg.Backend {
	case config.BackendWhisper:
		return stt.NewWhisperRecognizer(cfg.OpenAIAPIKey, cfg.WhisperModel,
			stt.WithWhisperWindow(cfg.WhisperWindow)), nil
	default:
		creds, err := stt.LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"project": creds.ProjectID,
			"account": creds.ClientEmail,
		}).Debug("loaded service account credentials")
		return stt.NewGoogleRecognizer(creds), nil
	}
}
