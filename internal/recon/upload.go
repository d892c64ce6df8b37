package recon

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// FilePart is one named file in an upload bundle.
type FilePart struct {
	Filename string
	Reader   io.Reader
}

// UploadBundle carries the model artifact files for one group: the primary
// model file set plus up to four auxiliary slots. Every slot is optional at
// this layer; supplying at least the model files is a caller convention.
type UploadBundle struct {
	ModelFiles      []FilePart
	Log             *FilePart
	Eval            *FilePart
	NerfstudioData  *FilePart
	NerfstudioModel *FilePart
}

// ModelUploader transmits an upload bundle to the pipeline's
// reconstruction/group-scoped endpoint. Implemented by api.Client. A nil
// metadata map with nil error means the pipeline acknowledged the upload
// without returning a structured model object.
type ModelUploader interface {
	UploadGroupModel(ctx context.Context, reconID, groupID, modelID, period string, bundle UploadBundle) (map[string]any, error)
}

// UploadGroupModel attaches a model artifact to the named group via a
// single external upload call. On success the group's model field is set to
// the structured response when the pipeline returns one, or to the given
// modelID otherwise, and the reconstruction is re-pinned to ready. On
// failure nothing is mutated and the error propagates.
//
// One upload in flight per group is the expected usage; concurrent calls
// for the same group are not serialized here, so callers must disable the
// trigger while a request is outstanding.
func (reg *Registry) UploadGroupModel(ctx context.Context, up ModelUploader, reconID, groupID, modelID, period string, bundle UploadBundle) error {
	if modelID == "" {
		return fmt.Errorf("model id must not be blank")
	}

	reg.mu.Lock()
	r, err := reg.find(reconID)
	if err != nil {
		reg.mu.Unlock()
		return err
	}
	if r.findGroup(groupID) < 0 {
		reg.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	reg.mu.Unlock()

	meta, err := up.UploadGroupModel(ctx, reconID, groupID, modelID, period, bundle)
	if err != nil {
		return fmt.Errorf("upload model for group %s: %w", groupID, err)
	}

	model := &Model{ID: modelID}
	if meta != nil {
		model = &Model{Meta: meta}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, err = reg.find(reconID)
	if err != nil {
		return err
	}
	gi := r.findGroup(groupID)
	if gi < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r.Groups[gi].Model = model
	r.Groups[gi].Status = GroupSuccess
	// The upload must not regress a reconstruction that was already ready.
	r.Status = StatusReady

	log.Info().
		Str("reconstructionId", reconID).
		Str("groupId", groupID).
		Str("modelId", modelID).
		Bool("structured", meta != nil).
		Msg("Group model uploaded")
	return nil
}
