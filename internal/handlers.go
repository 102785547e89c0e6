package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/model"
)

const (
	formFile = "file"
	formData = "data"
)

type Handlers struct {
	Service IService
	logger  *zap.SugaredLogger
}

func NewHandlers(Service IService, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: Service, logger: logger}
}

func RegisterRoutes(app fiber.Router, h *Handlers) {
	app.Get("/health", h.Health)
	app.Get("/health/ready", h.Ready)

	api := app.Group("/api")
	api.Post("/ingest", h.Ingest)
	api.Get("/orders", h.GetOrders)
	api.Get("/orders/:order_id", h.GetOrder)
}

func (h *Handlers) Ingest(c *fiber.Ctx) error {
	p, err := payloadFromRequest(c)
	if err != nil {
		h.logger.Errorf("Error on ingest request: %s", err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on ingest request", "data": err.Error()})
	}

	res, err := h.Service.Ingest(c.Context(), p)
	if err != nil {
		h.logger.Errorf("Error on ingest request: %s", err.Error())
		if errors.Is(err, ingest.ErrInputConflict) || errors.Is(err, ingest.ErrMalformedInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on ingest request", "data": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on ingest request", "data": err.Error()})
	}

	return c.Status(ingestStatus(res)).JSON(res)
}

// ingestStatus separates store failures from validation failures: the body is the same summary
// either way, the status tells the caller whether resubmitting as-is can help.
func ingestStatus(res model.IngestionResult) int {
	if res.StoreError == nil {
		return fiber.StatusOK
	}
	switch ingest.StoreErrorKind(res.StoreError.Kind) {
	case ingest.ConstraintViolation:
		return fiber.StatusConflict
	case ingest.StoreTimeout:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on get orders request", "data": err.Error()})
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on get orders request", "data": err.Error()})
	}

	orders, err := h.Service.GetOrders(c.Context(), model.OrderFilter{
		CustomerID: c.Query("customer_id"),
		Status:     c.Query("status"),
		Skip:       skip,
		Limit:      limit,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidFilter) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on get orders request", "data": err.Error()})
		}
		h.logger.Errorf("Error on get orders request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on get orders request", "data": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) GetOrder(c *fiber.Ctx) error {
	o, err := h.Service.GetOrder(c.Context(), c.Params("order_id"))
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "error", "message": "Order not found"})
		}
		h.logger.Errorf("Error on get order request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on get order request", "data": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(o)
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) Ready(c *fiber.Ctx) error {
	if err := h.Service.Ready(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// payloadFromRequest accepts a multipart form (file and/or data fields), a JSON body
// ({"data": [...]} or a bare array) or a raw csv/xlsx body. Deciding whether exactly one form
// was supplied is left to the pipeline.
func payloadFromRequest(c *fiber.Ctx) (ingest.Payload, error) {
	ct := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		return payloadFromForm(c)
	case strings.HasPrefix(ct, fiber.MIMEApplicationJSON):
		return payloadFromJSON(c.Body())
	case strings.HasPrefix(ct, "text/csv"), strings.HasPrefix(ct, fiber.MIMETextPlain):
		return ingest.Payload{File: append([]byte{}, c.Body()...), FileName: "upload.csv"}, nil
	case strings.HasPrefix(ct, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return ingest.Payload{File: append([]byte{}, c.Body()...), FileName: "upload.xlsx"}, nil
	case len(c.Body()) == 0:
		return ingest.Payload{}, nil
	default:
		return ingest.Payload{}, fmt.Errorf("unsupported content type %q", ct)
	}
}

func payloadFromForm(c *fiber.Ctx) (ingest.Payload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return ingest.Payload{}, fmt.Errorf("invalid form data: %w", err)
	}

	var p ingest.Payload
	if files := form.File[formFile]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return ingest.Payload{}, fmt.Errorf("opening uploaded file: %w", err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return ingest.Payload{}, fmt.Errorf("reading uploaded file: %w", err)
		}
		p.File = data
		p.FileName = files[0].Filename
	}

	if values := form.Value[formData]; len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		records, err := decodeList([]byte(values[0]))
		if err != nil {
			return ingest.Payload{}, err
		}
		p.Records = records
	}
	return p, nil
}

func payloadFromJSON(body []byte) (ingest.Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ingest.Payload{}, nil
	}

	if trimmed[0] == '[' {
		records, err := decodeList(trimmed)
		if err != nil {
			return ingest.Payload{}, err
		}
		return ingest.Payload{Records: records}, nil
	}

	var req struct {
		Data []interface{} `json:"data"`
	}
	if err := newDecoder(trimmed).Decode(&req); err != nil {
		return ingest.Payload{}, fmt.Errorf("invalid json body: %w", err)
	}
	return ingest.Payload{Records: req.Data}, nil
}

func decodeList(data []byte) ([]interface{}, error) {
	var records []interface{}
	if err := newDecoder(data).Decode(&records); err != nil {
		return nil, fmt.Errorf("data must be a json list: %w", err)
	}
	if records == nil {
		records = []interface{}{}
	}
	return records, nil
}

// newDecoder keeps numbers as json.Number so prices never pass through float64.
func newDecoder(data []byte) *json.Decoder {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	return d
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return i, nil
}

// ErrorHandler renders errors that escape the handlers (body limit, unknown routes) in the same
// shape as handler errors.
func ErrorHandler(logger *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code == fiber.StatusRequestEntityTooLarge {
			err = ErrBodyTooLarge
		}
		if code >= fiber.StatusInternalServerError {
			logger.Errorf("Unhandled error: %s", err.Error())
		}
		return c.Status(code).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
}
