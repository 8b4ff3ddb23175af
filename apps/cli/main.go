package main

import (
	"fmt"
	"log"
	"os"
	"time"

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
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "CLI : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	client, err := apiclient.NewFromConfig(conf)
	errAndDie(logger, err)
	catalog, err := facet.LoadCatalog()
	errAndDie(logger, err)

	validate, translator := newValidator()

	// start CLI
	cli := commandLine{
		out:        os.Stdout,
		conf:       conf,
		auth:       client,
		catalog:    catalog,
		listingSvc: listing.NewService(client, merkez.NewDecoder(validate, translator), logger),
		crmSvc:     crm.NewService(client, logger, conf.Planning),
		paymentSvc: payment.NewService(client, logger),
		now:        time.Now,
	}
	err = cli.run(os.Args)
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
