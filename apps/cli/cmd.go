package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/gommon/color"
	"golang.org/x/term"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/merkez"
	"github.com/maraakiz/portal/core/payment"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type authenticator interface {
	Login(ctx context.Context, email, password string) (core.Session, error)
}

type commandLine struct {
	out        io.Writer
	clr        *color.Color
	conf       *core.Config
	auth       authenticator
	catalog    *facet.Catalog
	listingSvc *listing.Service
	crmSvc     *crm.Service
	paymentSvc *payment.Service
	now        func() time.Time
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	merkez.InitValidators(validate, translator)
	return validate, translator
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) warnf(format string, args ...interface{}) {
	if cli.clr == nil {
		cli.clr = color.New()
		cli.clr.SetOutput(cli.out)
	}
	cli.printf("%s\n", cli.clr.Yellow(fmt.Sprintf(format, args...)))
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  facets - list the facets offered by the directory\n")
	cli.printf("  browse [-facet KEY=VALUE ...] - list the merkez matching the selection\n")
	cli.printf("  show -id ID - show one merkez\n")
	cli.printf("  login -email EMAIL - sign in and print an access token (the password is prompted next)\n")
	cli.printf("  next -token TOKEN [-merkez ID] - show the next session of the planning\n")
	cli.printf("  ics -token TOKEN - print the planning as an iCalendar document\n")
	cli.printf("  pay -link TOKEN [-method METHOD] - show a payment link, confirming it when a method is given\n")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "facets":
		cli.listFacets()
		return nil

	case "browse":
		cmd := cli.newFlagSet("browse")
		var selection facetFlags
		cmd.Var(&selection, "facet", "A facet option as KEY=VALUE. Repeat to select several; selecting an option twice clears it.")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		return cli.browse(ctx, selection)

	case "show":
		cmd := cli.newFlagSet("show")
		id := cmd.Int("id", 0, "The merkez id.")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		if *id <= 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.show(ctx, *id)

	case "login":
		cmd := cli.newFlagSet("login")
		email := cmd.String("email", "", "The account email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		cli.printf("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		cli.printf("\n")
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *email, string(pwd))

	case "next":
		cmd := cli.newFlagSet("next")
		token := cmd.String("token", "", "An access token, as printed by login.")
		merkezID := cmd.Int("merkez", 0, "Read the next session from this merkez's dashboard.")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		if *token == "" || *merkezID < 0 {
			cmd.Usage()
			return errHelp
		}
		sess, err := cli.session(*token)
		if err != nil {
			return err
		}
		return cli.next(ctx, sess, *merkezID)

	case "ics":
		cmd := cli.newFlagSet("ics")
		token := cmd.String("token", "", "An access token, as printed by login.")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		if *token == "" {
			cmd.Usage()
			return errHelp
		}
		sess, err := cli.session(*token)
		if err != nil {
			return err
		}
		return cli.exportICS(ctx, sess)

	case "pay":
		cmd := cli.newFlagSet("pay")
		link := cmd.String("link", "", "The payment link token.")
		method := cmd.String("method", "", "Confirm the payment with this method: "+joinMethods()+".")
		if err := cmd.Parse(args[2:]); err != nil {
			return parseErr(err)
		}
		if *link == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.pay(ctx, *link, *method)

	default:
		cli.printUsage()
		return errHelp
	}
}

// session reads a token given on the command line, refusing expired ones before any call.
func (cli *commandLine) session(token string) (core.Session, error) {
	sess, err := core.NewSession(token)
	if err != nil {
		return core.Anonymous, err
	}
	if sess.Expired(time.Now()) {
		return core.Anonymous, core.ErrSessionExpired
	}
	return sess, nil
}

func parseErr(err error) error {
	if err == flag.ErrHelp {
		return errHelp
	}
	return err
}

func joinMethods() string {
	names := make([]string, 0, len(payment.Methods))
	for _, m := range payment.Methods {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}
