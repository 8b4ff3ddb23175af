package main

import (
	"context"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/planning"
)

const eventLayout = "Mon 02/01/2006 15:04"

func (cli *commandLine) login(ctx context.Context, email, password string) error {
	sess, err := cli.auth.Login(ctx, core.CleanString(email, true /* lower */), password)
	if err != nil {
		return err
	}
	cli.printf("%s\n", sess.Token)
	return nil
}

// next prints the next session: from the planning, or from the merkez dashboard when one is given.
func (cli *commandLine) next(ctx context.Context, sess core.Session, merkezID int) error {
	var (
		ev     planning.Event
		found  bool
		source = crm.NextFromPlanning
	)
	if merkezID > 0 {
		dash, err := cli.crmSvc.Dashboard(ctx, sess, merkezID, cli.now())
		if err != nil {
			return err
		}
		for _, src := range dash.Degraded {
			cli.warnf("%s: unavailable", src)
		}
		if dash.Next != nil {
			ev, found, source = *dash.Next, true, dash.NextFrom
		}
	} else {
		var err error
		if ev, found, err = cli.crmSvc.NextSession(ctx, sess, cli.now()); err != nil {
			return err
		}
	}

	if !found {
		cli.printf("no upcoming session\n")
		return nil
	}
	cli.printf("#%d %s\n", ev.ID, ev.Title)
	if start, err := ev.StartTime(cli.crmSvc.Location()); err == nil {
		cli.printf("  %s (%s)\n", start.Format(eventLayout), source)
	}
	if ev.VisioLink.Valid {
		cli.printf("  %s\n", ev.VisioLink.String)
	}
	return nil
}

func (cli *commandLine) exportICS(ctx context.Context, sess core.Session) error {
	events, err := cli.crmSvc.Planning(ctx, sess)
	if err != nil {
		return err
	}
	doc := planning.ExportICS(events, planning.ICSOptions{
		ProductID: cli.conf.Planning.ICSProductID,
		Name:      cli.conf.AppName + " - planning",
		Location:  cli.crmSvc.Location(),
		Now:       cli.now(),
	})
	cli.printf("%s", doc)
	return nil
}
