package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/fpang/temple-recon/internal/recon"
)

// uploadResponse is the envelope for model upload calls. The pipeline
// either acknowledges with ok=true, optionally attaching structured model
// metadata, or reports an error.
type uploadResponse struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Model map[string]any `json:"model,omitempty"`
}

// UploadGroupModel transmits a model artifact bundle for one group as a
// single multipart POST: every file under model_files[], the optional log,
// eval, nerfstudio_data, and nerfstudio_model slots, plus the model_id and
// month fields. Returns the pipeline's structured model metadata when one
// is attached to the acknowledgement, nil otherwise.
func (c *Client) UploadGroupModel(ctx context.Context, reconID, groupID, modelID, period string, bundle recon.UploadBundle) (map[string]any, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range bundle.ModelFiles {
		if err := writePart(mw, "model_files[]", f); err != nil {
			return nil, err
		}
	}
	optional := map[string]*recon.FilePart{
		"log":              bundle.Log,
		"eval":             bundle.Eval,
		"nerfstudio_data":  bundle.NerfstudioData,
		"nerfstudio_model": bundle.NerfstudioModel,
	}
	for field, part := range optional {
		if part == nil {
			continue
		}
		if err := writePart(mw, field, *part); err != nil {
			return nil, err
		}
	}
	if err := mw.WriteField("model_id", modelID); err != nil {
		return nil, fmt.Errorf("write model_id field: %w", err)
	}
	if err := mw.WriteField("month", period); err != nil {
		return nil, fmt.Errorf("write month field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/reconstructions/%s/groups/%s/model",
		c.baseURL, url.PathEscape(reconID), url.PathEscape(groupID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Info().
		Str("reconstructionId", reconID).
		Str("groupId", groupID).
		Str("modelId", modelID).
		Int("modelFiles", len(bundle.ModelFiles)).
		Msg("Uploading group model")

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("upload failed with status %d (body: %s)", status, truncate(string(body), 200))
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pipeline error: %s", resp.Error)
	}
	if !resp.OK {
		return nil, fmt.Errorf("upload not acknowledged (body: %s)", truncate(string(body), 200))
	}
	return resp.Model, nil
}

// writePart streams one file into the multipart body under the field name.
func writePart(mw *multipart.Writer, field string, part recon.FilePart) error {
	w, err := mw.CreateFormFile(field, part.Filename)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(w, part.Reader); err != nil {
		return fmt.Errorf("write %s part %s: %w", field, part.Filename, err)
	}
	return nil
}
