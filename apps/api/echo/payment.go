package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core/payment"
)

type paymentApi struct {
	svc      *payment.Service
	validate *validator.Validate
}

// The payment pages are public: the link token is the credential.
func registerPaymentAPI(g *echo.Group, svc *payment.Service, validate *validator.Validate) {
	api := paymentApi{svc: svc, validate: validate}

	pg := g.Group("/paiements")
	pg.GET("/:token", api.retrieve)
	pg.POST("/:token/confirm", api.confirm)
}

type PaymentResponse struct {
	payment.Info
	Remaining float64 `json:"reste_a_payer"`
	Period    string  `json:"periode"`
}

func newPaymentResponse(info payment.Info) PaymentResponse {
	return PaymentResponse{Info: info, Remaining: info.Remaining(), Period: info.Period()}
}

// Handlers

func (api *paymentApi) retrieve(ctx echo.Context) error {
	info, err := api.svc.Info(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "reading payment")
	}
	return ctx.JSON(http.StatusOK, newPaymentResponse(info))
}

func (api *paymentApi) confirm(ctx echo.Context) error {
	var data payment.ConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}
	method, err := data.Validate(api.validate)
	if err != nil {
		return err
	}

	info, err := api.svc.Confirm(ctx.Request().Context(), ctx.Param("token"), method)
	if err != nil {
		return errors.Wrap(err, "confirming payment")
	}
	return ctx.JSON(http.StatusOK, newPaymentResponse(info))
}
