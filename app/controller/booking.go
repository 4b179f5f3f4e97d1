package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/factory"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/mapper"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/service"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/types"
)

const genericPaymentError = "payment could not be completed, please try again"

type BookingController struct {
	bookingService *service.BookingService
	siteBaseURL    string
	logger         logrus.FieldLogger
}

func NewBookingController(bookingService *service.BookingService, siteBaseURL string) *BookingController {
	return &BookingController{
		bookingService: bookingService,
		siteBaseURL:    strings.TrimRight(siteBaseURL, "/"),
		logger:         factory.NewModuleLogger("bookings-controller"),
	}
}

func (c *BookingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BookingController) InitiateBooking(ctx echo.Context) error {
	req, err := types.NewInitiateBookingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.bookingService.InitiateBooking(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrMethodUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAmountMismatch):
			return c.writeError(ctx, http.StatusUnprocessableEntity, service.ErrAmountMismatch.Error())
		case errors.Is(err, service.ErrTourNotFound):
			return c.writeError(ctx, http.StatusNotFound, service.ErrTourNotFound.Error())
		default:
			// Gateway and persistence detail stays in the logs; the
			// customer only sees a retriable generic message.
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Booking initiation failed")
			return c.writeError(ctx, http.StatusBadGateway, genericPaymentError)
		}
	}

	return ctx.JSON(http.StatusCreated, &types.InitiateBookingResponse{
		Success:           true,
		BookingID:         result.Booking.ID,
		RedirectURL:       result.RedirectURL,
		ProviderRequestID: result.ProviderRequestID,
		Instructions:      result.Instructions,
	})
}

func (c *BookingController) GetBooking(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return c.writeError(ctx, http.StatusBadRequest, "booking id is required")
	}

	booking, err := c.bookingService.GetBooking(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		}
		c.logger.WithError(err).Error("Get booking failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToResponse(booking)})
}

func (c *BookingController) ListBookings(ctx echo.Context) error {
	req, err := types.NewListBookingsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}

	items, err := c.bookingService.ListBookings(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("List bookings failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListBookingsResponse{Bookings: mapper.BookingsToResponse(items)})
}

func (c *BookingController) ConfirmBankTransfer(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return c.writeError(ctx, http.StatusBadRequest, "booking id is required")
	}

	booking, err := c.bookingService.ConfirmBankTransfer(ctx.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Bank transfer confirmation failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToResponse(booking)})
}

// MpesaCallback receives the STK push result. Daraja retries anything that is
// not acknowledged with its envelope, so every outcome, including unmatched or
// malformed payloads, is ACKed; failures are logged for investigation and the
// booking stays pending.
func (c *BookingController) MpesaCallback(ctx echo.Context) error {
	req, err := types.NewMpesaCallbackRequestFromContext(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Malformed mpesa callback body")
		return c.mpesaAck(ctx)
	}

	if _, err := c.bookingService.ReconcileMpesaCallback(ctx.Request().Context(), req); err != nil {
		c.logger.WithError(err).WithField("checkout_request_id", req.Body.StkCallback.CheckoutRequestID).Warn("Mpesa callback not applied")
	}

	return c.mpesaAck(ctx)
}

// PesapalRedirect completes the browser flow: reconcile, then send the
// customer to the site's status page. Only the booking id and tracking id
// travel in the redirect.
func (c *BookingController) PesapalRedirect(ctx echo.Context) error {
	req := types.NewPesapalCallbackRequestFromContext(ctx)

	if _, err := c.bookingService.ReconcilePesapalCallback(ctx.Request().Context(), req); err != nil {
		c.logger.WithError(err).WithField("tracking_id", req.OrderTrackingID).Warn("Pesapal redirect reconciliation failed")
	}

	target := c.siteBaseURL + "/booking/status?" + url.Values{
		"bookingId":  {req.OrderMerchantReference},
		"trackingId": {req.OrderTrackingID},
	}.Encode()

	return ctx.Redirect(http.StatusFound, target)
}

// PesapalIPN handles the server-to-server notification. Pesapal keeps
// re-delivering until it sees its acknowledgment envelope, so the response is
// the same whether or not the notification matched a booking.
func (c *BookingController) PesapalIPN(ctx echo.Context) error {
	req := types.NewPesapalCallbackRequestFromContext(ctx)

	if _, err := c.bookingService.ReconcilePesapalCallback(ctx.Request().Context(), req); err != nil {
		c.logger.WithError(err).WithField("tracking_id", req.OrderTrackingID).Warn("Pesapal IPN reconciliation failed")
	}

	return ctx.JSON(http.StatusOK, &types.PesapalIPNAckResponse{
		OrderNotificationType:  req.OrderNotificationType,
		OrderTrackingID:        req.OrderTrackingID,
		OrderMerchantReference: req.OrderMerchantReference,
		Status:                 http.StatusOK,
	})
}

func (c *BookingController) CardCallback(ctx echo.Context) error {
	req, err := types.NewCardCallbackRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	booking, err := c.bookingService.ReconcileCardCallback(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCallbackUnmatched):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		default:
			c.logger.WithError(err).Error("Card callback reconciliation failed")
			return c.writeError(ctx, http.StatusBadGateway, genericPaymentError)
		}
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToResponse(booking)})
}

func (c *BookingController) mpesaAck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.MpesaAckResponse{ResultCode: 0, ResultDesc: "Accepted"})
}

func (c *BookingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
