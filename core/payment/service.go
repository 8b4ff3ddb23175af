package payment

import (
	"context"
	"regexp"

	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
)

const payPath = "/paiements/pay/"

var tokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

type Service struct {
	client core.Client
	logger core.Logger
}

func NewService(client core.Client, logger core.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Info reads the payment behind a link token. The page is public: no session is sent.
func (svc *Service) Info(ctx context.Context, token string) (Info, error) {
	if !tokenRegex.MatchString(token) {
		return Info{}, ErrInvalidToken
	}

	var info Info
	if err := svc.client.Fetch(ctx, core.Anonymous, payPath+token, nil, &info); err != nil {
		return Info{}, errors.Wrap(err, "payment info")
	}
	return info, nil
}

// Confirm declares the payment behind `token` as paid with `method` and returns the updated payment.
// A payment that is already paid is refused without calling the upstream.
func (svc *Service) Confirm(ctx context.Context, token string, method Method) (Info, error) {
	if !method.Valid() {
		return Info{}, ErrUnknownMethod
	}
	info, err := svc.Info(ctx, token)
	if err != nil {
		return Info{}, err
	}
	if info.Paid() {
		return info, ErrAlreadyPaid
	}

	body := map[string]Method{"methode_paiement": method}
	if err := svc.client.Post(ctx, core.Anonymous, payPath+token+"/confirm", body, nil); err != nil {
		return Info{}, errors.Wrap(err, "payment confirm")
	}
	svc.logger.Info("payment confirmed", map[string]interface{}{"paiement_id": info.ID, "methode": method})

	updated, err := svc.Info(ctx, token)
	if err != nil {
		// confirmed, but the refreshed view is unavailable
		info.Status = StatusPaid
		info.Method.SetValid(string(method))
		return info, nil
	}
	return updated, nil
}
