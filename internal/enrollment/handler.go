package enrollment

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/cardcrypto"
)

var validate = validator.New()

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	orch *Orchestrator
}

// NewHandler builds an enrollment HTTP handler.
func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// startRequest keeps card fields as raw bytes so they can be wiped after use.
type startRequest struct {
	PAN    json.RawMessage `json:"pan"`
	Expiry json.RawMessage `json:"expiry"`
	CVV    json.RawMessage `json:"cvv"`
}

func (r *startRequest) wipe() {
	cardcrypto.Wipe(r.PAN)
	cardcrypto.Wipe(r.Expiry)
	cardcrypto.Wipe(r.CVV)
}

func (r *startRequest) card() (CardInput, error) {
	pan, err := digitField("pan", r.PAN, 12, 19)
	if err != nil {
		return CardInput{}, err
	}
	expiry, err := digitField("expiry", r.Expiry, 4, 4)
	if err != nil {
		return CardInput{}, err
	}
	cvv, err := digitField("cvv", r.CVV, 3, 4)
	if err != nil {
		return CardInput{}, err
	}
	return CardInput{PAN: pan, Expiry: expiry, CVV: cvv}, nil
}

// digitField returns the digits of a JSON string literal as a sub-slice of
// raw, so wiping raw wipes the result too.
func digitField(name string, raw json.RawMessage, minLen, maxLen int) ([]byte, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, fmt.Errorf("%s must be a string of digits", name)
	}
	digits := raw[1 : len(raw)-1]
	if len(digits) < minLen || len(digits) > maxLen {
		return nil, fmt.Errorf("%s must have between %d and %d digits", name, minLen, maxLen)
	}
	for _, b := range digits {
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("%s must be a string of digits", name)
		}
	}
	return digits, nil
}

type idvRequest struct {
	MethodID string `json:"method_id" validate:"required"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

type toastResponse struct {
	Type        string `json:"type"`
	Caption     string `json:"caption"`
	Description string `json:"description,omitempty"`
}

type idvMethodResponse struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Value   string `json:"value"`
}

type stateResponse struct {
	SessionID     string              `json:"session_id,omitempty"`
	State         string              `json:"state"`
	DigitalCardID string              `json:"digital_card_id,omitempty"`
	PanSuffix     string              `json:"pan_suffix,omitempty"`
	Waiting       bool                `json:"waiting"`
	WaitingText   string              `json:"waiting_text,omitempty"`
	TermsText     string              `json:"terms_text,omitempty"`
	IdvMethods    []idvMethodResponse `json:"idv_methods,omitempty"`
	AwaitingCode  bool                `json:"awaiting_code"`
	LeaveScreen   bool                `json:"leave_screen"`
	Toast         *toastResponse      `json:"toast,omitempty"`
}

type eventResponse struct {
	Seq   uint64        `json:"seq"`
	At    time.Time     `json:"at"`
	State stateResponse `json:"state"`
}

// Start begins enrollment of the posted card.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req startRequest
	defer req.wipe()
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	in, err := req.card()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.orch.Start(c.UserContext(), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusAccepted).JSON(toStateResponse(sess, h.orch.State()))
}

// Current returns the current state and its projection.
func (h *Handler) Current(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(toStateResponse(h.orch.Current(), h.orch.State()))
}

// AcceptTerms accepts the pending terms.
func (h *Handler) AcceptTerms(c *fiber.Ctx) error {
	return h.respond(c, h.orch.AcceptTerms(c.UserContext()))
}

// DeclineTerms declines the pending terms.
func (h *Handler) DeclineTerms(c *fiber.Ctx) error {
	return h.respond(c, h.orch.DeclineTerms(c.UserContext()))
}

// SelectIdv forwards the chosen identity verification method.
func (h *Handler) SelectIdv(c *fiber.Ctx) error {
	var req idvRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return h.respond(c, h.orch.SelectIdvMethod(c.UserContext(), req.MethodID))
}

// SubmitCode submits the activation code.
func (h *Handler) SubmitCode(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	code := []byte(req.Code)
	err := h.orch.SubmitActivationCode(c.UserContext(), code)
	cardcrypto.Wipe(code)
	return h.respond(c, err)
}

// Cancel cancels the running session.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	return h.respond(c, h.orch.Cancel(c.UserContext()))
}

// Events streams the current session as server-sent events until the
// session reaches a terminal state. The stream has a single consumer.
func (h *Handler) Events(c *fiber.Ctx) error {
	sess := h.orch.Current()
	if sess == nil {
		return fiber.NewError(http.StatusNotFound, "no enrollment session")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events := sess.Events()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for ev := range events {
			payload, err := json.Marshal(eventResponse{Seq: ev.Seq, At: ev.At, State: toStateResponse(sess, ev.State)})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", ev.Seq, payload)
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func (h *Handler) respond(c *fiber.Ctx, err error) error {
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toStateResponse(h.orch.Current(), h.orch.State()))
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyInProgress), errors.Is(err, ErrInvalidStateTransition):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrPushTokenMissing):
		return fiber.NewError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrInvalidCard), errors.Is(err, ErrUnknownIdvMethod), errors.Is(err, ErrInvalidActivationCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toStateResponse(sess *Session, st State) stateResponse {
	v := Project(st)
	resp := stateResponse{
		State:        v.State,
		Waiting:      v.Waiting,
		WaitingText:  v.WaitingText,
		TermsText:    v.TermsText,
		AwaitingCode: v.AwaitingCode,
		LeaveScreen:  v.LeaveScreen,
	}
	if sess != nil {
		resp.SessionID = sess.ID()
		resp.PanSuffix = sess.Fingerprint().PanSuffix
	}
	if id, ok := st.DigitalCardID(); ok {
		resp.DigitalCardID = id
	}
	for _, m := range v.IdvMethods {
		resp.IdvMethods = append(resp.IdvMethods, idvMethodResponse{ID: m.ID, Channel: string(m.Channel), Value: m.Value})
	}
	if v.Toast != nil {
		resp.Toast = &toastResponse{Type: string(v.Toast.Type), Caption: v.Toast.Caption, Description: v.Toast.Description}
	}
	return resp
}
