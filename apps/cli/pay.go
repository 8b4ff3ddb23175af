package main

import (
	"context"

	"github.com/maraakiz/portal/core/payment"
)

func (cli *commandLine) pay(ctx context.Context, link, method string) error {
	var (
		info payment.Info
		err  error
	)
	if method == "" {
		info, err = cli.paymentSvc.Info(ctx, link)
	} else {
		var m payment.Method
		if m, err = payment.ParseMethod(method); err != nil {
			return err
		}
		info, err = cli.paymentSvc.Confirm(ctx, link, m)
	}
	if err != nil {
		return err
	}

	cli.printf("%s - %s (%s)\n", info.StudentName, info.MerkezName, info.Period())
	cli.printf("  du %.2f €, paye %.2f €, reste %.2f €\n", info.AmountDue, info.AmountPaid, info.Remaining())
	cli.printf("  statut %s", info.Status)
	if info.Method.Valid {
		cli.printf(" (%s)", info.Method.String)
	}
	cli.printf("\n")
	return nil
}
