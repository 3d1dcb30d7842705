package api

import (
	"errors"
	"io"

	"github.com/detectext/detectext/internal/detect"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// engineResult is one provider's slot in the combined all-engines payload.
// A failed provider carries its error here instead of masquerading as an
// empty detection.
type engineResult struct {
	Engine       string `json:"engine"`
	DetectedText string `json:"detectedText"`
	Error        string `json:"error,omitempty"`
}

// handleDetectText accepts a multipart image upload and dispatches it to
// the requested OCR engine(s). Single-engine requests answer with the raw
// recognized text; engine=all answers with one JSON entry per provider.
func (h *Server) handleDetectText(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		h.metrics.RecordRequest("none", "missing_image")
		return c.Status(fiber.StatusBadRequest).
			SendString("Error: No image file sent. Please try again.")
	}

	if err := h.archive.ValidateUploadSize(fileHeader.Size); err != nil {
		h.metrics.RecordRequest("none", "too_large")
		return c.Status(fiber.StatusBadRequest).
			SendString("Error: " + err.Error())
	}

	// source is only used to build the archive key, never interpreted
	source := c.FormValue("source")

	engineParam := c.FormValue("engine")
	if engineParam == "" {
		engineParam = h.config.Providers.DefaultEngine
	}
	engine, err := detect.ParseEngine(engineParam)
	if err != nil {
		var unknownErr *detect.UnknownEngineError
		if errors.As(err, &unknownErr) {
			h.metrics.RecordRequest(engineParam, "unknown_engine")
			return c.Status(fiber.StatusBadRequest).
				SendString("Error: Requested engine " + unknownErr.Engine + " not found.")
		}
		return err
	}

	// Read the upload; the handle is released before any provider call
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to open uploaded image")
	}
	image, err := io.ReadAll(file)
	closeErr := file.Close()
	if err != nil || closeErr != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read uploaded image")
	}
	if len(image) == 0 {
		h.metrics.RecordRequest(string(engine), "missing_image")
		return c.Status(fiber.StatusBadRequest).
			SendString("Error: No image file sent. Please try again.")
	}

	req := detect.NewRequest(image, source, engine)

	log.Info().
		Str("engine", string(engine)).
		Str("source", source).
		Str("upload_id", req.UploadID).
		Int("image_bytes", len(image)).
		Msg("Dispatching detection request")

	if engine == detect.EngineAll {
		return h.respondAll(c, req)
	}
	return h.respondSingle(c, req)
}

// respondSingle runs the single-provider path and answers in plain text.
func (h *Server) respondSingle(c *fiber.Ctx, req *detect.Request) error {
	result := h.dispatcher.Detect(c.Context(), req)
	if result.Err != nil {
		h.metrics.RecordRequest(string(req.Engine), "provider_error")
		return c.Status(fiber.StatusBadGateway).
			SendString("Error: " + result.Err.Error())
	}

	h.metrics.RecordRequest(string(req.Engine), "ok")
	return c.SendString(result.Text)
}

// respondAll fans out to every provider and answers once all three slots
// are filled, whatever order they completed in.
func (h *Server) respondAll(c *fiber.Ctx, req *detect.Request) error {
	results := h.dispatcher.DetectAll(c.Context(), req)

	entries := make([]engineResult, 0, len(results))
	for _, result := range results {
		entry := engineResult{
			Engine:       string(result.Provider),
			DetectedText: result.Text,
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		entries = append(entries, entry)
	}

	h.metrics.RecordRequest(string(req.Engine), "ok")
	return c.JSON(fiber.Map{
		"results": entries,
	})
}
