package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"signflow/internal/delivery/http/middleware"
	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/usecase"
)

type SignatureHandler struct {
	usecase usecase.SignatureUsecase
	logger  *zap.Logger
}

func NewSignatureHandler(usecase usecase.SignatureUsecase, logger *zap.Logger) *SignatureHandler {
	return &SignatureHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Create godoc
// @Summary Create signature request
// @Description Open a signature request on a document of the caller's organization
// @Tags signature-requests
// @Accept json
// @Produce json
// @Param request body entity.CreateSignatureRequest true "Signature request"
// @Success 201 {object} entity.APIResponse
// @Failure 400 {object} entity.APIResponse
// @Failure 409 {object} entity.APIResponse
// @Router /api/v1/signature-requests [post]
func (h *SignatureHandler) Create(c *fiber.Ctx) error {
	var req entity.CreateSignatureRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Info("Failed to parse request body", zap.Error(err))
		return apperror.Validation("invalid request body")
	}

	created, err := h.usecase.Create(c.UserContext(), middleware.Principal(c), &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(
		entity.NewSuccessResponse(created, "Signature request created"),
	)
}

// List godoc
// @Summary List signature requests
// @Tags signature-requests
// @Produce json
// @Param status query string false "pending, signed, declined or expired"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/signature-requests [get]
func (h *SignatureHandler) List(c *fiber.Ctx) error {
	filter := entity.ListFilter{Status: entity.RequestStatus(c.Query("status"))}

	requests, err := h.usecase.List(c.UserContext(), middleware.Principal(c), filter)
	if err != nil {
		return err
	}

	return c.JSON(entity.NewSuccessResponse(requests, "Signature requests retrieved successfully"))
}

// Get godoc
// @Summary Get signature request
// @Tags signature-requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} entity.APIResponse
// @Failure 404 {object} entity.APIResponse
// @Router /api/v1/signature-requests/{id} [get]
func (h *SignatureHandler) Get(c *fiber.Ctx) error {
	req, err := h.usecase.Get(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(req, "Signature request retrieved successfully"))
}

func (h *SignatureHandler) GetSigners(c *fiber.Ctx) error {
	signers, err := h.usecase.GetSigners(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(signers, "Signers retrieved successfully"))
}

func (h *SignatureHandler) GetSignatures(c *fiber.Ctx) error {
	signatures, err := h.usecase.GetSignatures(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(signatures, "Signatures retrieved successfully"))
}

func (h *SignatureHandler) GetActivity(c *fiber.Ctx) error {
	activities, err := h.usecase.GetActivity(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(activities, "Activity retrieved successfully"))
}

// CanSign godoc
// @Summary Check whether the caller may sign now
// @Tags signature-requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/signature-requests/{id}/can-sign [get]
func (h *SignatureHandler) CanSign(c *fiber.Ctx) error {
	result, err := h.usecase.CanUserSign(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(result, "Eligibility evaluated"))
}

// Sign godoc
// @Summary Sign a request
// @Description Submit signature evidence. Client IP and User-Agent are recorded with it.
// @Tags signature-requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body entity.SignInput true "Signature evidence"
// @Success 200 {object} entity.APIResponse
// @Failure 400 {object} entity.APIResponse
// @Failure 403 {object} entity.APIResponse
// @Failure 409 {object} entity.APIResponse
// @Failure 422 {object} entity.APIResponse
// @Router /api/v1/signature-requests/{id}/sign [post]
func (h *SignatureHandler) Sign(c *fiber.Ctx) error {
	var in entity.SignInput
	if err := c.BodyParser(&in); err != nil {
		h.logger.Info("Failed to parse signature body", zap.Error(err))
		return apperror.Validation("invalid request body")
	}
	in.IPAddress = c.IP()
	in.UserAgent = c.Get(fiber.HeaderUserAgent)

	result, err := h.usecase.Sign(c.UserContext(), middleware.Principal(c), c.Params("id"), &in)
	if err != nil {
		return err
	}

	message := "Signature recorded"
	if result.Request.Status == entity.RequestStatusSigned {
		message = "Signature request completed"
	}
	return c.JSON(entity.NewSuccessResponse(result, message))
}

// Decline godoc
// @Summary Decline a request
// @Tags signature-requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body entity.DeclineInput false "Optional reason"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/signature-requests/{id}/decline [post]
func (h *SignatureHandler) Decline(c *fiber.Ctx) error {
	var in *entity.DeclineInput
	if len(c.Body()) > 0 {
		in = &entity.DeclineInput{}
		if err := c.BodyParser(in); err != nil {
			return apperror.Validation("invalid request body")
		}
	}

	req, err := h.usecase.Decline(c.UserContext(), middleware.Principal(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(req, "Signature request declined"))
}

func (h *SignatureHandler) Cancel(c *fiber.Ctx) error {
	req, err := h.usecase.Cancel(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(req, "Signature request cancelled"))
}

// Preview godoc
// @Summary Acknowledge document preview
// @Description Returns a time-bound read URL and records the preview in the audit trail
// @Tags signature-requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/signature-requests/{id}/preview [post]
func (h *SignatureHandler) Preview(c *fiber.Ctx) error {
	preview, err := h.usecase.AcknowledgePreview(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entity.NewSuccessResponse(preview, "Preview acknowledged"))
}
