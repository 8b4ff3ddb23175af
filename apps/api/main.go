package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/maraakiz/portal/apps/api/echo"
	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/merkez"
	"github.com/maraakiz/portal/core/payment"
	"github.com/maraakiz/portal/services/apiclient"
	logsvc "github.com/maraakiz/portal/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	client, err := apiclient.NewFromConfig(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up upstream client: %v", err), err)
	}
	catalog, err := facet.LoadCatalog()
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading facet catalog: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, upstream %s", conf.Build, conf.Upstream.BaseURL))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	merkez.InitValidators(validate, translator)

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("upstream").Set(conf.Upstream.BaseURL)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Catalog:    catalog,
			Auth:       client,
			ListingSvc: listing.NewService(client, merkez.NewDecoder(validate, translator), logger),
			CRMSvc:     crm.NewService(client, logger, conf.Planning),
			PaymentSvc: payment.NewService(client, logger),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
