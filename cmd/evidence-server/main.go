package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodix/evidence-engine/common"
	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/httpserver"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for the verification API",
	},
	&cli.StringFlag{
		Name:  "verifier-key",
		Value: "",
		Usage: "PEM file with the ECDSA public key for custody signature verification",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: "evidence-server",
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "evidence-server",
		Usage: "Serve the evidence pack verification API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			verifierKeyFile := cCtx.String("verifier-key")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")
			enablePprof := cCtx.Bool("pprof")
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   logDebug,
				JSON:    logJSON,
				Service: logService,
				Version: common.Version,
			})

			if logUID {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			var signatureVerifier custody.SignatureVerifier
			if verifierKeyFile != "" {
				pemData, err := os.ReadFile(verifierKeyFile)
				if err != nil {
					logger.Error("Failed to read verifier key", "err", err)
					return err
				}
				verifier, err := custody.ParseVerifierPEM(pemData)
				if err != nil {
					logger.Error("Failed to parse verifier key", "err", err)
					return err
				}
				signatureVerifier = verifier
				logger.Info("Custody signature verification enabled", "file", verifierKeyFile)
			} else {
				logger.Info("No verifier key configured, signed events will verify with a warning")
			}

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				Log:                      logger,
				EnablePprof:              enablePprof,
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			handler := httpserver.NewHandler(logger, signatureVerifier)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
