package handler

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"docsync/internal/model"
	"docsync/internal/service"
)

// documentRequest is the JSON body accepted by create and update.
// documentId is accepted as an alias of id.
type documentRequest struct {
	ID         *string `json:"id,omitempty"`
	DocumentID *string `json:"documentId,omitempty"`
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
}

func (r *documentRequest) id() string {
	if r == nil {
		return ""
	}
	if r.ID != nil && *r.ID != "" {
		return *r.ID
	}
	if r.DocumentID != nil {
		return *r.DocumentID
	}
	return ""
}

// DocumentResponse wraps a single document.
type DocumentResponse struct {
	Message  string          `json:"message,omitempty"`
	Document *model.Document `json:"document"`
}

// DeletedResponse carries the record as it was before removal.
type DeletedResponse struct {
	Message         string          `json:"message"`
	DeletedDocument *model.Document `json:"deletedDocument"`
}

// DocumentHandler exposes DocumentService over HTTP.
type DocumentHandler struct {
	svc service.DocumentService
	log *zap.Logger
}

// NewDocumentHandler creates a handler around svc.
func NewDocumentHandler(svc service.DocumentService, log *zap.Logger) *DocumentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentHandler{svc: svc, log: log}
}

// parseBody decodes an optional JSON body. A missing body yields a nil request.
func parseBody(c *fiber.Ctx) (*documentRequest, error) {
	body := c.Body()
	if len(body) == 0 {
		return nil, nil
	}
	var req documentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// resolveID takes the document ID from the path, then the query string, then the body.
// Path and query values are copied because fiber reuses their buffers after the handler returns.
// The path segment arrives still percent-encoded.
func resolveID(c *fiber.Ctx, body *documentRequest) string {
	if id := c.Params("id"); id != "" {
		if unescaped, err := url.PathUnescape(id); err == nil {
			id = unescaped
		}
		return utils.CopyString(id)
	}
	for _, id := range []string{c.Query("id"), c.Query("documentId")} {
		if id != "" {
			return utils.CopyString(id)
		}
	}
	return body.id()
}

func invalidBody(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, CodeValidation, "request body must be a JSON object")
}

func missingID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, CodeValidation, "document id is required")
}

// Create godoc
// @Summary Create a document
// @Accept json
// @Produce json
// @Param document body documentRequest true "title is required; id is optional"
// @Success 201 {object} DocumentResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents [post]
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	req, err := parseBody(c)
	if err != nil {
		return invalidBody(c)
	}
	if req == nil {
		return writeError(c, fiber.StatusBadRequest, CodeValidation, "request body is required")
	}

	in := service.CreateInput{ID: req.id()}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Content != nil {
		in.Content = *req.Content
	}

	doc, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(DocumentResponse{Message: "document created", Document: doc})
}

// List godoc
// @Summary List documents
// @Produce json
// @Param limit query int false "page size; omit to list every document"
// @Param token query string false "continuation token from a previous page"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents [get]
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	// GET /documents?id=... is a fetch-by-id.
	if c.Query("id") != "" || c.Query("documentId") != "" {
		return h.Get(c)
	}

	opts := service.ListOptions{Token: utils.CopyString(c.Query("token"))}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return writeError(c, fiber.StatusBadRequest, CodeValidation, "invalid limit")
		}
		opts.Limit = limit
	}

	res, err := h.svc.List(c.UserContext(), opts)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	return c.JSON(res)
}

// Get godoc
// @Summary Get a document
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} DocumentResponse
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	id := resolveID(c, nil)
	if id == "" {
		return missingID(c)
	}
	doc, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	return c.JSON(DocumentResponse{Document: doc})
}

// Update godoc
// @Summary Partially update a document
// @Accept json
// @Produce json
// @Param id path string true "document id"
// @Param document body documentRequest true "fields to change"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *fiber.Ctx) error {
	req, err := parseBody(c)
	if err != nil {
		return invalidBody(c)
	}
	id := resolveID(c, req)
	if id == "" {
		return missingID(c)
	}

	var in service.UpdateInput
	if req != nil {
		in.Title = req.Title
		in.Content = req.Content
	}

	doc, err := h.svc.Update(c.UserContext(), id, in)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	return c.JSON(DocumentResponse{Message: "document updated", Document: doc})
}

// Delete godoc
// @Summary Delete a document
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} DeletedResponse
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	req, err := parseBody(c)
	if err != nil {
		return invalidBody(c)
	}
	id := resolveID(c, req)
	if id == "" {
		return missingID(c)
	}

	doc, err := h.svc.Delete(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	return c.JSON(DeletedResponse{Message: "document deleted", DeletedDocument: doc})
}

// Download godoc
// @Summary Download a document as plain text
// @Produce plain
// @Param id path string true "document id"
// @Success 200 {string} string
// @Failure 404 {object} errorPayload
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *fiber.Ctx) error {
	id := resolveID(c, nil)
	if id == "" {
		return missingID(c)
	}
	doc, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.log, err)
	}
	c.Attachment(doc.Title + ".txt")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(doc.Content)
}
